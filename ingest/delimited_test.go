package ingest

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/nickyhof/orpheus/core"
	"github.com/stretchr/testify/require"
)

func TestDetectScheme(t *testing.T) {
	tests := []struct {
		path string
		want urlScheme
	}{
		{"orders.csv", schemeLocal},
		{"/tmp/orders.csv", schemeLocal},
		{"file:///tmp/orders.csv", schemeFile},
		{"S3://bucket/orders.csv", schemeS3},
		{"http://example.com/a.csv", schemeHTTP},
		{"https://example.com/a.csv", schemeHTTPS},
	}
	for _, tt := range tests {
		if got := detectScheme(tt.path); got != tt.want {
			t.Errorf("detectScheme(%q) = %s, want %s", tt.path, got, tt.want)
		}
	}
}

func TestParseS3URL(t *testing.T) {
	bucket, key, err := parseS3URL("s3://data/dir/orders.csv")
	require.NoError(t, err)
	require.Equal(t, "data", bucket)
	require.Equal(t, "dir/orders.csv", key)

	_, _, err = parseS3URL("s3://data")
	require.Error(t, err)
}

func TestResolve(t *testing.T) {
	require.Equal(t, filepath.Join("/home/u", "out.csv"), Resolve("out.csv", "/home/u"))
	require.Equal(t, "/abs/out.csv", Resolve("/abs/out.csv", "/home/u"))
	require.Equal(t, "s3://b/out.csv", Resolve("s3://b/out.csv", "/home/u"))
	require.Equal(t, "out.csv", Resolve("out.csv", ""))
}

func TestWriteAndLoadDelimited(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "orders.csv")

	rows := []core.Row{
		{int64(1), "apple, red", 1.5},
		{int64(2), "pear", nil},
	}
	opts := Options{Header: true}
	require.NoError(t, WriteDelimited(ctx, path, []string{"id", "item", "price"}, rows, opts))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, "id,item,price\n1,\"apple, red\",1.5\n2,pear,\n", string(data))

	table, err := LoadDelimited(ctx, path, opts)
	require.NoError(t, err)
	require.Equal(t, []string{"id", "item", "price"}, table.Header)
	require.Len(t, table.Rows, 2)

	projected, err := table.Project([]string{"item", "id"})
	require.NoError(t, err)
	require.Equal(t, [][]string{{"apple, red", "1"}, {"pear", "2"}}, projected)

	_, err = table.Project([]string{"qty"})
	var mismatch *core.SchemaMismatchError
	require.ErrorAs(t, err, &mismatch)
}

func TestLoadDelimitedCustomDelimiter(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "orders.tsv")
	require.NoError(t, os.WriteFile(path, []byte("1\tapple\n2\tpear\n"), 0644))

	table, err := LoadDelimited(ctx, "file://"+path, Options{Delimiter: `\t`})
	require.NoError(t, err)
	require.Nil(t, table.Header)

	projected, err := table.Project([]string{"id", "item"})
	require.NoError(t, err)
	require.Equal(t, [][]string{{"1", "apple"}, {"2", "pear"}}, projected)
}

func TestInvalidDelimiter(t *testing.T) {
	_, err := LoadDelimited(context.Background(), "x.csv", Options{Delimiter: "ab"})
	var bad *core.BadParametersError
	require.ErrorAs(t, err, &bad)
}

func TestLoadDelimitedHTTP(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/orders.csv" {
			http.NotFound(w, r)
			return
		}
		io.WriteString(w, "id,item\n1,apple\n")
	}))
	defer srv.Close()

	table, err := LoadDelimited(context.Background(), srv.URL+"/orders.csv", Options{Header: true})
	require.NoError(t, err)
	require.Equal(t, [][]string{{"1", "apple"}}, table.Rows)

	_, err = LoadDelimited(context.Background(), srv.URL+"/missing.csv", Options{})
	require.Error(t, err)
	require.True(t, strings.Contains(err.Error(), "404"))

	err = WriteDelimited(context.Background(), srv.URL+"/out.csv", []string{"id"}, nil, Options{})
	require.Error(t, err)
}

func TestRemove(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.csv")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0644))

	require.NoError(t, Remove(path))
	_, err := os.Stat(path)
	require.True(t, os.IsNotExist(err))

	// missing files and remote paths are not an error
	require.NoError(t, Remove(path))
	require.NoError(t, Remove("s3://bucket/out.csv"))
}
