package convert

import (
	"encoding/json"
	"math"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/brensch/snekgym/game"
)

func sampleState() *game.EpisodeState {
	return &game.EpisodeState{
		BoardSize: 4,
		Snake:     []game.Point{{Row: 1, Col: 1}, {Row: 1, Col: 2}, {Row: 2, Col: 2}},
		Food:      game.Point{Row: 3, Col: 0},
		Direction: game.Left,
	}
}

// pixelAt reads the pixel at (y, x) of an HWC image observation.
func pixelAt(o Observation, y, x int) RGB {
	var c RGB
	i := (y*o.Shape[1] + x) * Channels
	copy(c[:], o.Pixels[i:i+Channels])
	return c
}

func near(a, b float32) bool {
	return math.Abs(float64(a-b)) < 1e-6
}

func TestScalarGrid_Values(t *testing.T) {
	obs := ScalarGrid{}.Encode(sampleState())
	t.Logf("scalar:\n%s", DumpScalar(obs))

	if obs.Kind != KindScalar || len(obs.Shape) != 2 || obs.Shape[0] != 4 || obs.Shape[1] != 4 {
		t.Fatalf("shape=%v kind=%s", obs.Shape, obs.Kind)
	}
	at := func(r, c int) float32 { return obs.Scalars[r*4+c] }

	if at(1, 1) != ScalarHead {
		t.Fatalf("head=%v want=%v", at(1, 1), ScalarHead)
	}
	if !near(at(1, 2), 0.5) {
		t.Fatalf("middle=%v want=0.5", at(1, 2))
	}
	if !near(at(2, 2), ScalarBodyFar) {
		t.Fatalf("tail=%v want=%v", at(2, 2), ScalarBodyFar)
	}
	if at(3, 0) != ScalarFood {
		t.Fatalf("food=%v want=%v", at(3, 0), ScalarFood)
	}
	if at(0, 0) != ScalarEmpty {
		t.Fatalf("empty=%v want=0", at(0, 0))
	}
}

func TestScalarGrid_Matrix(t *testing.T) {
	obs := ScalarGrid{}.Encode(sampleState())
	m := obs.Matrix()
	if m == nil {
		t.Fatalf("matrix is nil")
	}
	r, c := m.Dims()
	if r != 4 || c != 4 {
		t.Fatalf("dims=%dx%d want=4x4", r, c)
	}
	if m.At(3, 0) != -1 || m.At(1, 1) != 1 {
		t.Fatalf("matrix values wrong: food=%v head=%v", m.At(3, 0), m.At(1, 1))
	}
	if (Image{Scale: 2}).Encode(sampleState()).Matrix() != nil {
		t.Fatalf("image observation produced a matrix")
	}
}

func TestImage_ShapeAndColors(t *testing.T) {
	enc := Image{Scale: 3}
	obs := enc.Encode(sampleState())

	want := []int{12, 12, 3}
	for i := range want {
		if obs.Shape[i] != want[i] {
			t.Fatalf("shape=%v want=%v", obs.Shape, want)
		}
	}
	if len(obs.Pixels) != 12*12*3 {
		t.Fatalf("pixels=%d", len(obs.Pixels))
	}

	// Every pixel of an upsampled cell carries the cell color.
	for dy := 0; dy < 3; dy++ {
		for dx := 0; dx < 3; dx++ {
			if c := pixelAt(obs, 1*3+dy, 1*3+dx); c != ColorHead {
				t.Fatalf("head pixel=%v want=%v", c, ColorHead)
			}
			if c := pixelAt(obs, 2*3+dy, 2*3+dx); c != ColorTail {
				t.Fatalf("tail pixel=%v want=%v", c, ColorTail)
			}
			if c := pixelAt(obs, 3*3+dy, 0*3+dx); c != ColorFood {
				t.Fatalf("food pixel=%v want=%v", c, ColorFood)
			}
		}
	}
	mid := pixelAt(obs, 1*3, 2*3)
	if mid[0] != mid[1] || mid[1] != mid[2] || mid[0] != 125 {
		t.Fatalf("body pixel=%v want gray 125", mid)
	}
	if c := pixelAt(obs, 0, 0); c != (RGB{}) {
		t.Fatalf("empty pixel=%v want black", c)
	}
}

func TestImage_DefaultScaleGives84(t *testing.T) {
	s := sampleState()
	s.BoardSize = 12
	obs := Image{Scale: DefaultImageScale}.Encode(s)
	if obs.Shape[0] != 84 || obs.Shape[1] != 84 || obs.Shape[2] != 3 {
		t.Fatalf("shape=%v want=[84 84 3]", obs.Shape)
	}
}

func TestEncode_RecomputableFromSerializedState(t *testing.T) {
	state := sampleState()
	raw, err := json.Marshal(state)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var restored game.EpisodeState
	if err := json.Unmarshal(raw, &restored); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	for _, kind := range []Kind{KindScalar, KindImage} {
		enc, err := New(kind, DefaultImageScale)
		if err != nil {
			t.Fatalf("New(%s): %v", kind, err)
		}
		if diff := cmp.Diff(enc.Encode(state), enc.Encode(&restored)); diff != "" {
			t.Fatalf("%s: observation differs after round trip (-want +got):\n%s", kind, diff)
		}
	}
}

func TestEncode_VictoryStateSkipsFood(t *testing.T) {
	s := sampleState()
	s.Food = game.NoPoint
	obs := ScalarGrid{}.Encode(s)
	for i, v := range obs.Scalars {
		if v == ScalarFood {
			t.Fatalf("food marker at %d with NoPoint food", i)
		}
	}
}

func TestParseKind(t *testing.T) {
	cases := map[string]Kind{"scalar": KindScalar, "MLP": KindScalar, "image": KindImage, " cnn ": KindImage}
	for in, want := range cases {
		got, err := ParseKind(in)
		if err != nil || got != want {
			t.Fatalf("ParseKind(%q)=%q,%v want %q", in, got, err, want)
		}
	}
	if _, err := ParseKind("voxels"); err == nil {
		t.Fatalf("expected error for unknown kind")
	}
	if _, err := New(KindImage, 0); err == nil {
		t.Fatalf("expected error for zero scale")
	}
}

func TestDumpScalar_FormatsMatrix(t *testing.T) {
	out := DumpScalar(ScalarGrid{}.Encode(sampleState()))
	t.Logf("scalar:\n%s", out)
	if got := strings.Count(strings.TrimRight(out, "\n"), "\n") + 1; got != 4 {
		t.Fatalf("dump has %d lines want 4:\n%s", got, out)
	}
	if !strings.Contains(out, "-1") || !strings.Contains(out, "0.5") {
		t.Fatalf("dump misses food or body values:\n%s", out)
	}
	if DumpScalar(Image{Scale: 1}.Encode(sampleState())) != "" {
		t.Fatalf("image observation dumped as a matrix")
	}
}

func TestObservationJSON_PixelsAreNumbers(t *testing.T) {
	obs := Image{Scale: 1}.Encode(sampleState())
	raw, err := json.Marshal(obs)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var generic map[string]any
	if err := json.Unmarshal(raw, &generic); err != nil {
		t.Fatalf("unmarshal generic: %v", err)
	}
	pixels, ok := generic["pixels"].([]any)
	if !ok {
		t.Fatalf("pixels encoded as %T, want array", generic["pixels"])
	}
	if len(pixels) != len(obs.Pixels) {
		t.Fatalf("pixels len=%d want %d", len(pixels), len(obs.Pixels))
	}
	// Head cell (1,1) on a 4 board: green channel at offset (1*4+1)*3+1.
	if pixels[(1*4+1)*3+1] != float64(255) {
		t.Fatalf("head green channel=%v want 255", pixels[(1*4+1)*3+1])
	}

	var back Observation
	if err := json.Unmarshal(raw, &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if diff := cmp.Diff(obs, back); diff != "" {
		t.Fatalf("observation changed over JSON (-want +got):\n%s", diff)
	}

	if err := json.Unmarshal([]byte(`{"kind":"image","shape":[1,1,3],"pixels":[0,300,0]}`), &back); err == nil {
		t.Fatalf("expected error for out-of-range pixel")
	}
}
