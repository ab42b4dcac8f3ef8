package flat

import (
	"io"
	"testing"
)

func TestGZRoundTrip(t *testing.T) {
	f := NewFlatWithRoot(t.TempDir()).ForExports()

	w, err := f.NamedGZWriter(ActivitiesFileName, nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := w.Writer().Write([]byte(`{"id":"a1"}` + "\n")); err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}

	r, err := f.NamedGZReader(ActivitiesFileName)
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()
	got, err := io.ReadAll(r.Reader())
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != `{"id":"a1"}`+"\n" {
		t.Errorf("got %q", got)
	}
}

func TestReaderMissingFile(t *testing.T) {
	f := NewFlatWithRoot(t.TempDir())
	if _, err := f.NamedGZReader("nope.gz"); err == nil {
		t.Fatal("expected error for missing file")
	}
}
