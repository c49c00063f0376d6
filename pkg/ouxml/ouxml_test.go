package ouxml

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleDoc = `<?xml version="1.0" encoding="UTF-8"?>
<Item>
  <CourseCode>TM112-20J</CourseCode>
  <CourseTitle>Introduction to computing &amp; IT 2</CourseTitle>
  <ItemTitle>Block 1: <i>Networks</i></ItemTitle>
  <Unit>
    <Session>
      <Title>Getting started</Title>
      <Figure id="fig1">
        <Image src="\\DCTM_FSS\content\Teaching and curriculum\tm112_b1_f01.tif"/>
        <Caption><Number>Figure 1</Number> A ﬁne network</Caption>
        <Description>Nodes&nbsp;and links</Description>
        <SourceReference>
          <ItemRights>
            <OwnerRef>Open University</OwnerRef>
            <ItemRef>b1f1</ItemRef>
            <ItemAcknowledgement>Courtesy of the author</ItemAcknowledgement>
          </ItemRights>
        </SourceReference>
      </Figure>
      <Paragraph>Inline <InlineEquation><Image src="https://www.open.edu/openlearn/pluginfile.php/100/mod_oucontent/oucontent/859/eq1.png" x_folderhash="ab12" x_contenthash="cd34" x_imagesrc="eq1.png"/><Alternative>x squared</Alternative></InlineEquation></Paragraph>
      <Figure><Caption>No image here</Caption></Figure>
      <Equation><Image/></Equation>
    </Session>
  </Unit>
</Item>`

func TestReadMetaAndFigures(t *testing.T) {
	doc, err := Read([]byte(sampleDoc))
	require.NoError(t, err)

	assert.Equal(t, Meta{
		CourseCode:   "TM112",
		Presentation: "20J",
		CourseTitle:  "Introduction to computing & IT 2",
		ItemTitle:    "Block 1: Networks",
	}, doc.Meta)

	require.Len(t, doc.Figures, 2)
	f := doc.Figures[0]
	assert.Equal(t, "Figure", f.Kind)
	assert.Equal(t, `\\DCTM_FSS\content\Teaching and curriculum\tm112_b1_f01.tif`, f.SourceURL)
	assert.Equal(t, "Figure 1 A fine network", f.Caption)
	assert.Equal(t, DefaultAlt, f.Alt)
	assert.Equal(t, "Nodes and links", f.Description)
	assert.Equal(t, "Open University", f.Owner)
	assert.Equal(t, "b1f1", f.ItemRef)
	assert.Equal(t, "Courtesy of the author", f.ItemAck)
	assert.Empty(t, f.ImageURL)

	eq := doc.Figures[1]
	assert.Equal(t, "InlineEquation", eq.Kind)
	assert.Equal(t, "x squared", eq.Alt)
	assert.Equal(t, "https://www.open.edu/openlearn/pluginfile.php/100/mod_oucontent/oucontent/859/ab12/cd34/eq1.png", eq.ImageURL)
}

func TestParseMalformed(t *testing.T) {
	for _, in := range []string{"", "<Item><Unit></Item>", "not xml at all"} {
		err := Validate([]byte(in))
		assert.True(t, errors.Is(err, ErrMalformed), "input %q: %v", in, err)
	}
	assert.NoError(t, Validate([]byte(sampleDoc)))
}

func TestParseDeclaredCharset(t *testing.T) {
	doc := append([]byte(`<?xml version="1.0" encoding="ISO-8859-1"?><Item><ItemTitle>Caf`), 0xe9, '<', '/', 'I', 't', 'e', 'm', 'T', 'i', 't', 'l', 'e', '>', '<', '/', 'I', 't', 'e', 'm', '>')
	root, err := ParseBytes(doc)
	require.NoError(t, err)
	// NFKD splits the accent from its base letter.
	assert.Equal(t, "Cafe\u0301", root.Find("ItemTitle").Text())
}

func TestElementLookupsOnNil(t *testing.T) {
	var e *Element
	assert.Nil(t, e.Child("x"))
	assert.Nil(t, e.Find("x"))
	assert.Empty(t, e.FindAll("x"))
	assert.Equal(t, "", e.Text())
}
