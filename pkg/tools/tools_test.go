package tools

import "testing"

func TestDefaultRegistryOrder(t *testing.T) {
	specs := DefaultRegistry().Specs()
	want := []string{ToolNameTerminal, ToolNameCreateOrUpdateFiles, ToolNameReadFiles}
	if len(specs) != len(want) {
		t.Fatalf("got %d specs, want %d", len(specs), len(want))
	}
	for i, name := range want {
		if specs[i].Name != name {
			t.Errorf("specs[%d] = %q, want %q", i, specs[i].Name, name)
		}
		if specs[i].InputSchema["type"] != "object" {
			t.Errorf("%s schema is not an object", name)
		}
	}
}
