package ingest

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"testing"

	"github.com/japaniel/ouxml2md/pkg/db"
	_ "github.com/mattn/go-sqlite3"
)

func setupBenchmarkDB(b *testing.B) *sql.DB {
	// Use in-memory DB for benchmarking to isolate ingestion logic overhead
	// from disk I/O.
	conn, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		b.Fatalf("failed to open db: %v", err)
	}
	conn.SetMaxOpenConns(1)
	_, _ = conn.Exec("PRAGMA synchronous = OFF")
	_, _ = conn.Exec("PRAGMA journal_mode = MEMORY")

	if err := db.InitDB(conn); err != nil {
		b.Fatalf("failed to init db: %v", err)
	}
	return conn
}

// generateBenchmarkDocument builds an OU-XML document with n figures.
func generateBenchmarkDocument(n int) []byte {
	var sb strings.Builder
	sb.WriteString("<Item><CourseCode>BM101-24B</CourseCode><ItemTitle>Benchmark</ItemTitle><Unit>")
	for i := 0; i < n; i++ {
		fmt.Fprintf(&sb, `<Figure><Image src="\\server\share\bm101_fig%04d.tif"/><Caption>Figure %d</Caption><Description>Description %d</Description></Figure>`, i, i, i)
	}
	sb.WriteString("</Unit></Item>")
	return []byte(sb.String())
}

func BenchmarkIngestDocument(b *testing.B) {
	doc := generateBenchmarkDocument(1000)

	for _, batch := range []int{1, 50, 500} {
		b.Run(fmt.Sprintf("Batch_%d", batch), func(b *testing.B) {
			for i := 0; i < b.N; i++ {
				b.StopTimer()
				conn := setupBenchmarkDB(b)
				ingester := NewIngester(conn)
				ingester.BatchSize = batch
				b.StartTimer()

				_, err := ingester.IngestDocument(context.Background(), Source{SourceLink: "bench", XML: doc})
				b.StopTimer()
				conn.Close()
				if err != nil {
					b.Fatalf("IngestDocument failed: %v", err)
				}
			}
		})
	}
}
