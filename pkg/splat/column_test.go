package splat

import "testing"

func TestColumnReadWriteF32(t *testing.T) {
	c := NewColumn("x", F32, 3)
	for i, v := range []float32{1.5, -2.25, 0} {
		if err := c.WriteF32(i, v); err != nil {
			t.Fatalf("WriteF32(%d): %v", i, err)
		}
	}
	for i, want := range []float32{1.5, -2.25, 0} {
		got, err := c.ReadAsF32(i)
		if err != nil {
			t.Fatalf("ReadAsF32(%d): %v", i, err)
		}
		if got != want {
			t.Errorf("element %d: got %v want %v", i, got, want)
		}
	}
}

func TestColumnIntegerRangeCheck(t *testing.T) {
	c := NewColumn("v", U8, 1)
	if err := c.WriteF32(0, 300); err == nil {
		t.Fatal("expected out-of-range error for u8 write of 300")
	}
	if err := c.WriteF32(0, 254); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestColumnNarrowingRequiresNearInteger(t *testing.T) {
	c := NewColumn("v", I32, 1)
	if err := c.WriteF32(0, 3.4); err == nil {
		t.Fatal("expected narrowing-truncation error for non-integer write to int column")
	}
	if err := c.WriteF32(0, 3.0); err != nil {
		t.Fatalf("unexpected error for integer-valued write: %v", err)
	}
}

func TestColumnEveryAndSome(t *testing.T) {
	c := NewColumn("v", F32, 4)
	for i := 0; i < 4; i++ {
		c.WriteF32(i, 2.0)
	}
	if !c.Every(2.0) {
		t.Error("expected Every(2.0) to be true")
	}
	c.WriteF32(2, 3.0)
	if c.Every(2.0) {
		t.Error("expected Every(2.0) to be false after mutation")
	}
	if !c.Some(3.0) {
		t.Error("expected Some(3.0) to be true")
	}
}

func TestColumnOutOfBoundsIndex(t *testing.T) {
	c := NewColumn("v", F32, 2)
	if _, err := c.ReadAsF32(5); err == nil {
		t.Fatal("expected error reading out-of-range index")
	}
}

func TestParseElement(t *testing.T) {
	v, err := F32.ParseElement("3.5")
	if err != nil || v != 3.5 {
		t.Fatalf("ParseElement: got %v, %v", v, err)
	}
	if _, err := F32.ParseElement("not-a-number"); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestColumnClone(t *testing.T) {
	c := NewColumn("v", F32, 2)
	c.WriteF32(0, 1)
	c.WriteF32(1, 2)
	cp := c.Clone()
	cp.WriteF32(0, 99)
	got, _ := c.ReadAsF32(0)
	if got != 1 {
		t.Error("Clone should be an independent copy")
	}
	_ = cp
}
