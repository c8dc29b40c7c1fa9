package splat

import "testing"

func newSplatTable(n int) *Table {
	names := RequiredColumns
	cols := make([]*Column, len(names))
	for i, name := range names {
		cols[i] = NewColumn(name, F32, n)
	}
	tbl, _ := NewTable(cols...)
	for i := 0; i < n; i++ {
		tbl.WriteRow(i, map[string]float32{
			"x": float32(i), "y": 0, "z": 0,
			"rot_0": 1, "rot_1": 0, "rot_2": 0, "rot_3": 0,
			"scale_0": 0, "scale_1": 0, "scale_2": 0,
			"f_dc_0": 0, "f_dc_1": 0, "f_dc_2": 0,
			"opacity": 0,
		})
	}
	return tbl
}

func TestValidateSchemaRejectsMissingColumns(t *testing.T) {
	tbl, _ := NewTable(NewColumn("x", F32, 1), NewColumn("y", F32, 1), NewColumn("z", F32, 1))
	if err := ValidateSchema(tbl); err == nil {
		t.Fatal("expected schema mismatch for table missing splat columns")
	}
}

func TestValidateSchemaAccepts(t *testing.T) {
	tbl := newSplatTable(3)
	if err := ValidateSchema(tbl); err != nil {
		t.Fatalf("expected valid schema: %v", err)
	}
}

func TestBandCountCanonical(t *testing.T) {
	tbl := newSplatTable(2)
	bands, err := BandCount(tbl)
	if err != nil || bands != 0 {
		t.Fatalf("expected 0 bands with no f_rest columns, got %d, %v", bands, err)
	}

	for i := 0; i < 9; i++ {
		tbl.AddColumn(NewColumn(sprintfFRest(i), F32, tbl.RowCount()))
	}
	bands, err = BandCount(tbl)
	if err != nil || bands != 1 {
		t.Fatalf("expected 1 band with 9 f_rest columns, got %d, %v", bands, err)
	}
}

func TestBandCountRejectsPartial(t *testing.T) {
	tbl := newSplatTable(2)
	for i := 0; i < 5; i++ {
		tbl.AddColumn(NewColumn(sprintfFRest(i), F32, tbl.RowCount()))
	}
	if _, err := BandCount(tbl); err == nil {
		t.Fatal("expected error for non-canonical partial f_rest set")
	}
}

func sprintfFRest(i int) string {
	const letters = "0123456789"
	if i < 10 {
		return "f_rest_" + string(letters[i])
	}
	return "f_rest_XX"
}

func TestSigmoid(t *testing.T) {
	if v := Sigmoid(0); v < 0.49 || v > 0.51 {
		t.Errorf("Sigmoid(0) should be ~0.5, got %v", v)
	}
}
