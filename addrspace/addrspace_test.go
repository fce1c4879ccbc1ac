package addrspace

import "testing"

func TestSegmentReadWriteRoundTrip(t *testing.T) {
	seg := NewSegment("heap", 16)
	if seg.Size() != 16 {
		t.Fatalf("Size() = %d, want 16", seg.Size())
	}

	n, err := seg.Write(4, []byte("abcd"))
	if err != nil || n != 4 {
		t.Fatalf("Write() = %d, %v", n, err)
	}

	buf := make([]byte, 4)
	n, err = seg.Read(4, buf)
	if err != nil || n != 4 || string(buf) != "abcd" {
		t.Fatalf("Read() = %q, %d, %v, want abcd", buf, n, err)
	}
}

func TestSegmentOutOfBoundsAccess(t *testing.T) {
	seg := NewSegment("heap", 4)
	if _, err := seg.Read(100, make([]byte, 1)); err == nil {
		t.Fatalf("Read past segment size should error")
	}
	if _, err := seg.Write(-1, make([]byte, 1)); err == nil {
		t.Fatalf("Write at a negative offset should error")
	}
}

func TestSpaceAttachDetach(t *testing.T) {
	space := New()
	seg := NewSegment("code", 8)

	if err := space.Attach(seg); err != nil {
		t.Fatalf("Attach() error: %v", err)
	}
	if err := space.Attach(seg); err == nil {
		t.Fatalf("attaching the same segment name twice should error")
	}
	if len(space.Segments()) != 1 {
		t.Fatalf("Segments() len = %d, want 1", len(space.Segments()))
	}

	if err := space.Detach("code"); err != nil {
		t.Fatalf("Detach() error: %v", err)
	}
	if err := space.Detach("code"); err == nil {
		t.Fatalf("detaching a segment twice should error")
	}
	if len(space.Segments()) != 0 {
		t.Fatalf("Segments() len = %d after Detach, want 0", len(space.Segments()))
	}
}

func TestSpaceActivateDeactivate(t *testing.T) {
	space := New()
	if err := space.Activate(); err != nil {
		t.Fatalf("Activate() error: %v", err)
	}
	if !space.active {
		t.Fatalf("active flag not set after Activate")
	}
	if err := space.Deactivate(); err != nil {
		t.Fatalf("Deactivate() error: %v", err)
	}
	if space.active {
		t.Fatalf("active flag still set after Deactivate")
	}
}
