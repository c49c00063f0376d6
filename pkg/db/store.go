package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/mattn/go-sqlite3"
)

// DBExecutor is an interface that allows methods to accept either *sql.DB or *sql.Tx
type DBExecutor interface {
	Exec(query string, args ...interface{}) (sql.Result, error)
	Query(query string, args ...interface{}) (*sql.Rows, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRow(query string, args ...interface{}) *sql.Row
}

// maxQueryVars keeps IN lists below SQLite's bound variable limit on older builds.
const maxQueryVars = 500

// isUniqueConstraintErr returns true when the error indicates a unique/constraint violation
func isUniqueConstraintErr(err error) bool {
	if err == nil {
		return false
	}
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique
	}
	s := strings.ToLower(err.Error())
	return strings.Contains(s, "unique") || strings.Contains(s, "constraint failed")
}

// InsertDocument stores a scraped document and returns its id.
func InsertDocument(db DBExecutor, d Document) (int64, error) {
	res, err := db.Exec(`INSERT INTO documents (source_link, doctype, html_url, xml, html_src, course_presentation, course_code, course_title, item_title)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		d.SourceLink, d.DocType, d.HTMLURL, d.XML, d.HTMLSource, d.CoursePresentation, d.CourseCode, d.CourseTitle, d.ItemTitle)
	if err != nil {
		return 0, fmt.Errorf("insert document: %w", err)
	}
	return res.LastInsertId()
}

const documentColumns = `id, source_link, doctype, html_url, xml, html_src, course_presentation, course_code, course_title, item_title, added_at`

func scanDocument(scan func(dest ...interface{}) error) (Document, error) {
	var d Document
	var link, typ, htmlURL, xml, htmlSrc, pres, code, title, item sql.NullString
	var added sql.NullTime
	if err := scan(&d.ID, &link, &typ, &htmlURL, &xml, &htmlSrc, &pres, &code, &title, &item, &added); err != nil {
		return Document{}, err
	}
	d.SourceLink = link.String
	d.DocType = typ.String
	d.HTMLURL = htmlURL.String
	d.XML = xml.String
	d.HTMLSource = htmlSrc.String
	d.CoursePresentation = pres.String
	d.CourseCode = code.String
	d.CourseTitle = title.String
	d.ItemTitle = item.String
	if added.Valid {
		d.AddedAt = added.Time
	}
	return d, nil
}

// GetDocument returns the document with the given id.
func GetDocument(db DBExecutor, id int64) (Document, error) {
	row := db.QueryRow(`SELECT `+documentColumns+` FROM documents WHERE id = ?`, id)
	d, err := scanDocument(row.Scan)
	if err != nil {
		return Document{}, fmt.Errorf("get document %d: %w", id, err)
	}
	return d, nil
}

// ListDocuments returns documents whose item title contains term
// (case-insensitive), ordered by id. An empty term lists everything.
func ListDocuments(db DBExecutor, term string) ([]Document, error) {
	pattern := "%" + escapeLike(strings.ToLower(strings.TrimSpace(term))) + "%"
	rows, err := db.Query(`SELECT `+documentColumns+` FROM documents
	WHERE LOWER(IFNULL(item_title, '')) LIKE ? ESCAPE '\'
	ORDER BY id`, pattern)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()
	var out []Document
	for rows.Next() {
		d, err := scanDocument(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

// InsertFigure stores an XML figure record.
func InsertFigure(db DBExecutor, f FigureRecord) (int64, error) {
	if f.SourceURL == "" || f.Stub == "" {
		return 0, fmt.Errorf("figure must have a source url and stub")
	}
	res, err := db.Exec(`INSERT INTO xml_figures (document_id, source_url, image_url, caption, alt, description, owner, item_ack, course_code, stub, min_stub)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		nullableInt64(f.DocumentID), f.SourceURL, f.ImageURL, f.Caption, f.Alt, f.Description, f.Owner, f.ItemAck, f.CourseCode, f.Stub, f.MinStub)
	if err != nil {
		return 0, fmt.Errorf("insert figure %s: %w", f.Stub, err)
	}
	return res.LastInsertId()
}

// InsertRenderedFigure stores an HTML figure record.
func InsertRenderedFigure(db DBExecutor, f RenderedFigureRecord) (int64, error) {
	if f.RenderedURL == "" || f.Stub == "" {
		return 0, fmt.Errorf("rendered figure must have a url and stub")
	}
	res, err := db.Exec(`INSERT INTO html_figures (document_id, rendered_url, page_url, course_code, stub, min_stub)
	VALUES (?, ?, ?, ?, ?, ?)`,
		nullableInt64(f.DocumentID), f.RenderedURL, f.PageURL, f.CourseCode, f.Stub, f.MinStub)
	if err != nil {
		return 0, fmt.Errorf("insert rendered figure %s: %w", f.Stub, err)
	}
	return res.LastInsertId()
}

// InsertImageBlob stores an image payload. It reports false when a blob with
// the same min stub already exists; the existing blob is kept.
func InsertImageBlob(db DBExecutor, b ImageBlob) (bool, error) {
	if b.MinStub == "" {
		return false, fmt.Errorf("image blob must have a min stub")
	}
	_, err := db.Exec(`INSERT INTO image_blobs (min_stub, stub, encoded) VALUES (?, ?, ?)`, b.MinStub, b.Stub, b.Encoded)
	if err != nil {
		if isUniqueConstraintErr(err) {
			return false, nil
		}
		return false, fmt.Errorf("insert image blob %s: %w", b.MinStub, err)
	}
	return true, nil
}

// GetImageBlob returns the blob stored for minStub.
func GetImageBlob(db DBExecutor, minStub string) (ImageBlob, error) {
	var b ImageBlob
	err := db.QueryRow(`SELECT id, min_stub, stub, encoded FROM image_blobs WHERE min_stub = ?`, minStub).
		Scan(&b.ID, &b.MinStub, &b.Stub, &b.Encoded)
	return b, err
}

// ResolveJoined matches XML figure stubs across all three views:
// rendered.min_stub = blob.min_stub AND xml.min_stub = rendered.min_stub AND
// xml.stub IN stubs. The local stub is the rendered filename.
//
// When several rows share a reference key the one with the lowest
// (xml, rendered, blob) row ids is returned.
func ResolveJoined(ctx context.Context, db DBExecutor, stubs []string) ([]Resolution, error) {
	const q = `SELECT f.source_url, r.stub, b.encoded
	FROM xml_figures f
	JOIN html_figures r ON r.min_stub = f.min_stub
	JOIN image_blobs b ON b.min_stub = r.min_stub
	WHERE f.stub IN (%s)
	ORDER BY f.id, r.id, b.id`
	return resolve(ctx, db, q, stubs)
}

// ResolveXMLOnly matches when only the XML and blob views are populated
// (OpenLearn units): xml.min_stub = blob.min_stub AND xml.min_stub IN minStubs.
// The local stub is the XML filename.
func ResolveXMLOnly(ctx context.Context, db DBExecutor, minStubs []string) ([]Resolution, error) {
	const q = `SELECT f.source_url, f.stub, b.encoded
	FROM xml_figures f
	JOIN image_blobs b ON b.min_stub = f.min_stub
	WHERE f.min_stub IN (%s)
	ORDER BY f.id, b.id`
	return resolve(ctx, db, q, minStubs)
}

func resolve(ctx context.Context, db DBExecutor, query string, keys []string) ([]Resolution, error) {
	keys = uniqueNonEmpty(keys)
	seen := make(map[string]bool)
	var out []Resolution
	for start := 0; start < len(keys); start += maxQueryVars {
		end := start + maxQueryVars
		if end > len(keys) {
			end = len(keys)
		}
		chunk := keys[start:end]
		args := make([]interface{}, len(chunk))
		for i, k := range chunk {
			args[i] = k
		}
		placeholders := strings.TrimSuffix(strings.Repeat("?,", len(chunk)), ",")
		rows, err := db.QueryContext(ctx, fmt.Sprintf(query, placeholders), args...)
		if err != nil {
			return out, fmt.Errorf("resolve stubs: %w", err)
		}
		for rows.Next() {
			var r Resolution
			if err := rows.Scan(&r.ReferenceKey, &r.LocalStub, &r.Encoded); err != nil {
				rows.Close()
				return out, err
			}
			if seen[r.ReferenceKey] {
				continue
			}
			seen[r.ReferenceKey] = true
			out = append(out, r)
		}
		err = rows.Err()
		rows.Close()
		if err != nil {
			return out, err
		}
	}
	return out, nil
}

func uniqueNonEmpty(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}

// nullableInt64 returns nil for 0 (meaning no parent row) else the value.
func nullableInt64(v int64) interface{} {
	if v == 0 {
		return nil
	}
	return v
}
