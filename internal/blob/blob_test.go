package blob

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/genepanels/panelapp/internal/config"
	"github.com/pkg/sftp"
)

// exerciseStore runs the behaviour every backend shares.
func exerciseStore(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()

	if _, _, err := s.Get(ctx, "missing.csv"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Get missing: expected ErrNotFound, got %v", err)
	}
	for _, key := range []string{"b/panel-2.tsv", "a/panel-1.tsv", "stats.csv"} {
		info, err := s.Put(ctx, key, strings.NewReader("data:"+key), "text/csv")
		if err != nil {
			t.Fatalf("Put %s: %v", key, err)
		}
		if info.Key != key || info.Size != int64(len("data:"+key)) {
			t.Fatalf("Put info = %+v", info)
		}
	}
	if _, err := s.Put(ctx, "stats.csv", strings.NewReader("v2"), "text/csv"); err != nil {
		t.Fatalf("Put overwrite: %v", err)
	}
	_, rc, err := s.Get(ctx, "stats.csv")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	body, _ := io.ReadAll(rc)
	_ = rc.Close()
	if string(body) != "v2" {
		t.Fatalf("Get body = %q, want overwritten content", body)
	}

	all, err := s.List(ctx, "")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	var keys []string
	for _, i := range all {
		keys = append(keys, i.Key)
	}
	if strings.Join(keys, ",") != "a/panel-1.tsv,b/panel-2.tsv,stats.csv" {
		t.Fatalf("List keys = %v", keys)
	}
	some, err := s.List(ctx, "b/")
	if err != nil || len(some) != 1 {
		t.Fatalf("List prefix = %v, %v", some, err)
	}

	if ok, err := s.Delete(ctx, "a/panel-1.tsv"); err != nil || !ok {
		t.Fatalf("Delete = %v, %v", ok, err)
	}
	if ok, err := s.Delete(ctx, "a/panel-1.tsv"); err != nil || ok {
		t.Fatalf("second Delete = %v, %v", ok, err)
	}
	if _, err := s.Put(ctx, "../escape", strings.NewReader("x"), ""); !errors.Is(err, ErrInvalidKey) {
		t.Fatalf("expected ErrInvalidKey, got %v", err)
	}
}

func TestMemoryStore(t *testing.T) {
	exerciseStore(t, NewMemory())
}

func TestFilesystemStore(t *testing.T) {
	s, err := NewFilesystem(filepath.Join(t.TempDir(), "exports"))
	if err != nil {
		t.Fatalf("NewFilesystem: %v", err)
	}
	exerciseStore(t, s)
}

func TestSFTPStore(t *testing.T) {
	serverConn, clientConn := net.Pipe()
	server := sftp.NewRequestServer(serverConn, sftp.InMemHandler())
	go func() { _ = server.Serve() }()
	client, err := sftp.NewClientPipe(clientConn, clientConn)
	if err != nil {
		t.Fatalf("NewClientPipe: %v", err)
	}
	s := NewSFTP(client, "/exports")
	t.Cleanup(func() {
		_ = s.Close()
		_ = server.Close()
	})
	exerciseStore(t, s)
}

// fakeS3 answers the handful of S3 calls the store makes.
type fakeS3 struct {
	mu   sync.Mutex
	objs map[string][]byte
}

func (f *fakeS3) RoundTrip(req *http.Request) (*http.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	resp := func(code int, body string, hdr http.Header) *http.Response {
		if hdr == nil {
			hdr = http.Header{}
		}
		return &http.Response{StatusCode: code, Body: io.NopCloser(strings.NewReader(body)), Header: hdr, Request: req}
	}
	// Path style: /bucket/key
	parts := strings.SplitN(strings.TrimPrefix(req.URL.Path, "/"), "/", 2)
	key := ""
	if len(parts) == 2 {
		key, _ = url.PathUnescape(parts[1])
	}
	if req.Method == http.MethodGet && req.URL.Query().Get("list-type") == "2" {
		prefix := req.URL.Query().Get("prefix")
		var keys []string
		for k := range f.objs {
			if strings.HasPrefix(k, prefix) {
				keys = append(keys, k)
			}
		}
		sort.Strings(keys)
		var b strings.Builder
		b.WriteString(`<?xml version="1.0"?><ListBucketResult><IsTruncated>false</IsTruncated>`)
		for _, k := range keys {
			fmt.Fprintf(&b, "<Contents><Key>%s</Key><Size>%d</Size><LastModified>2026-01-01T00:00:00Z</LastModified></Contents>", k, len(f.objs[k]))
		}
		b.WriteString("</ListBucketResult>")
		return resp(http.StatusOK, b.String(), http.Header{"Content-Type": {"application/xml"}}), nil
	}
	switch req.Method {
	case http.MethodPut:
		body, _ := io.ReadAll(req.Body)
		if strings.Contains(req.Header.Get("Content-Encoding"), "aws-chunked") {
			body = decodeChunked(body)
		}
		f.objs[key] = body
		return resp(http.StatusOK, "", http.Header{"ETag": {`"etag"`}}), nil
	case http.MethodGet, http.MethodHead:
		b, ok := f.objs[key]
		if !ok {
			return resp(http.StatusNotFound, `<?xml version="1.0"?><Error><Code>NoSuchKey</Code></Error>`, http.Header{"Content-Type": {"application/xml"}}), nil
		}
		hdr := http.Header{
			"Content-Length": {fmt.Sprint(len(b))},
			"Last-Modified":  {time.Now().UTC().Format(http.TimeFormat)},
		}
		if req.Method == http.MethodHead {
			b = nil
		}
		return resp(http.StatusOK, string(b), hdr), nil
	case http.MethodDelete:
		delete(f.objs, key)
		return resp(http.StatusNoContent, "", nil), nil
	}
	return resp(http.StatusNotImplemented, "", nil), nil
}

// decodeChunked strips aws-chunked framing: <hex>;...\r\n<data>\r\n0\r\n...
func decodeChunked(b []byte) []byte {
	var out bytes.Buffer
	for {
		i := bytes.Index(b, []byte("\r\n"))
		if i < 0 {
			return out.Bytes()
		}
		head := string(b[:i])
		if j := strings.IndexByte(head, ';'); j >= 0 {
			head = head[:j]
		}
		var n int
		if _, err := fmt.Sscanf(head, "%x", &n); err != nil || n == 0 {
			return out.Bytes()
		}
		b = b[i+2:]
		out.Write(b[:n])
		b = b[n+2:]
	}
}

func TestS3Store(t *testing.T) {
	fake := &fakeS3{objs: make(map[string][]byte)}
	s, err := NewS3(context.Background(), S3Config{
		Bucket:          "reports",
		Endpoint:        "https://s3.test",
		PathStyle:       true,
		AccessKeyID:     "AKIA",
		SecretAccessKey: "secret",
		HTTPClient:      &http.Client{Transport: fake},
	})
	if err != nil {
		t.Fatalf("NewS3: %v", err)
	}
	exerciseStore(t, s)
	if _, err := NewS3(context.Background(), S3Config{}); err == nil {
		t.Fatalf("expected error without bucket")
	}
}

func TestOpen(t *testing.T) {
	ctx := context.Background()
	var cfg config.Config
	dir := filepath.Join(t.TempDir(), "out")

	s, err := Open(ctx, "file://"+dir, cfg)
	if err != nil || s.Driver() != DriverFilesystem {
		t.Fatalf("Open file = %v, %v", s, err)
	}
	if fsStore := s.(*Filesystem); fsStore.root != dir {
		t.Fatalf("root = %q, want %q", fsStore.root, dir)
	}
	if s, err := Open(ctx, "memory://", cfg); err != nil || s.Driver() != DriverMemory {
		t.Fatalf("Open memory = %v, %v", s, err)
	}
	cfg.Blob.S3.Region = "eu-west-2"
	s, err = Open(ctx, "s3://panel-reports/nightly", cfg)
	if err != nil {
		t.Fatalf("Open s3: %v", err)
	}
	if s3 := s.(*S3); s3.bucket != "panel-reports" || s3.prefix != "nightly" {
		t.Fatalf("s3 store = %+v", s3)
	}
	if _, err := Open(ctx, "gopher://x", cfg); err == nil {
		t.Fatalf("expected error for unknown scheme")
	}
	if _, err := Open(ctx, "sftp://", cfg); err == nil {
		t.Fatalf("expected error for sftp without host")
	}
}

func TestLocalPath(t *testing.T) {
	for raw, want := range map[string]string{
		"file://./exports":   "./exports",
		"file:///var/export": "/var/export",
		"file:exports":       "exports",
	} {
		u, err := url.Parse(raw)
		if err != nil {
			t.Fatalf("parse %s: %v", raw, err)
		}
		if got := localPath(u); got != want {
			t.Errorf("localPath(%s) = %q, want %q", raw, got, want)
		}
	}
}
