package canvas_test

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/m-mizutani/drivelens/pkg/model"
	"github.com/m-mizutani/drivelens/pkg/usecase/canvas"
	"github.com/m-mizutani/gt"
)

func TestProject(t *testing.T) {
	t.Run("missing recommendations", func(t *testing.T) {
		got := canvas.Project(model.AgentState{Model: "openai"})
		gt.True(t, got != nil)
		gt.A(t, got).Length(0)
	})

	t.Run("keeps received order and duplicates", func(t *testing.T) {
		state := model.AgentState{Recommendations: []model.Recommendation{
			{Car: "Civic"}, {Car: "Model Y"}, {Car: "Civic"},
		}}
		got := canvas.Project(state)
		gt.Equal(t, got, state.Recommendations)
	})
}

func TestRenderStateCard(t *testing.T) {
	var buf bytes.Buffer
	r := canvas.NewRenderer(&buf)

	snap := model.Snapshot{Version: 2, State: model.AgentState{
		Model: "openai",
		Recommendations: []model.Recommendation{
			{Car: "Model Y", Tagline: "Quiet confidence", Content: "Great range"},
		},
	}}
	gt.NoError(t, r.RenderState(context.Background(), snap))

	out := buf.String()
	gt.S(t, out).Contains("[1] Model Y")
	gt.S(t, out).Contains(`"Quiet confidence"`)
	gt.S(t, out).Contains("Great range")
	gt.S(t, out).NotContains("[2]")
}

func TestRenderStateSkipsUnchanged(t *testing.T) {
	var buf bytes.Buffer
	r := canvas.NewRenderer(&buf)

	state := model.AgentState{Recommendations: []model.Recommendation{{Car: "Ioniq 5"}}}
	gt.NoError(t, r.RenderState(context.Background(), model.Snapshot{Version: 2, State: state}))
	first := buf.Len()

	state.Report = "updated report only"
	gt.NoError(t, r.RenderState(context.Background(), model.Snapshot{Version: 3, State: state}))
	gt.Equal(t, buf.Len(), first)

	state.Recommendations = append(state.Recommendations, model.Recommendation{Car: "EV6"})
	gt.NoError(t, r.RenderState(context.Background(), model.Snapshot{Version: 4, State: state}))
	gt.S(t, buf.String()).Contains("[2] EV6")
}

func TestRenderStateEmpty(t *testing.T) {
	var buf bytes.Buffer
	r := canvas.NewRenderer(&buf)

	gt.NoError(t, r.RenderState(context.Background(), model.Snapshot{Version: 1, State: model.AgentState{Model: "openai"}}))
	gt.Equal(t, buf.String(), "")
}

func TestRenderDetailedReview(t *testing.T) {
	var buf bytes.Buffer
	r := canvas.NewRenderer(&buf)

	state := model.AgentState{DetailedReview: &model.DetailedReview{
		CarName:    "Outback",
		ReviewText: "Roomy and sure-footed in snow.",
	}}
	gt.NoError(t, r.RenderState(context.Background(), model.Snapshot{Version: 2, State: state}))
	gt.S(t, buf.String()).Contains("Detailed review: Outback")
	gt.S(t, buf.String()).Contains("Roomy and sure-footed in snow.")

	buf.Reset()
	gt.NoError(t, r.RenderState(context.Background(), model.Snapshot{Version: 3, State: state}))
	gt.Equal(t, buf.String(), "")
}

func TestRenderProgress(t *testing.T) {
	var buf bytes.Buffer
	r := canvas.NewRenderer(&buf)

	gt.NoError(t, r.RenderProgress(context.Background(), nil))
	gt.Equal(t, buf.String(), "")

	gt.NoError(t, r.RenderProgress(context.Background(), []model.LogEntry{
		{Message: "Search for family SUV", Done: true},
		{Message: "Compare ranges"},
	}))
	gt.Equal(t, buf.String(), "  [x] Search for family SUV\n  [ ] Compare ranges\n")
}

func TestRenderMessage(t *testing.T) {
	var buf bytes.Buffer
	r := canvas.NewRenderer(&buf)

	gt.NoError(t, r.RenderMessage(context.Background(), model.AssistantMessage{Role: "assistant", Content: "Here are three picks."}))
	gt.NoError(t, r.RenderMessage(context.Background(), model.AssistantMessage{Role: "error", Content: "quota exceeded"}))
	gt.Equal(t, buf.String(), "Here are three picks.\nagent error: quota exceeded\n")
}

func TestIdentityLine(t *testing.T) {
	testCases := map[string]struct {
		identity *model.SessionIdentity
		want     string
	}{
		"named": {
			identity: &model.SessionIdentity{Address: "0xab12", Metadata: &model.AccountMetadata{Name: "alice"}},
			want:     "[0X] alice (0xab12)",
		},
		"unnamed": {
			identity: &model.SessionIdentity{Address: "ab12"},
			want:     "[AB] Unnamed (ab12)",
		},
	}

	for name, tc := range testCases {
		t.Run(name, func(t *testing.T) {
			gt.Equal(t, canvas.IdentityLine(tc.identity), tc.want)
		})
	}
}

func TestLandingAndHeader(t *testing.T) {
	var buf bytes.Buffer
	r := canvas.NewRenderer(&buf)

	gt.NoError(t, r.Landing())
	gt.S(t, buf.String()).Contains("drivelens login")

	buf.Reset()
	gt.NoError(t, r.Header(&model.SessionIdentity{Address: "0xab12"}))
	gt.S(t, buf.String()).HasPrefix(canvas.Title)
	gt.S(t, buf.String()).Contains("Unnamed")
}

type failingWriter struct{}

func (failingWriter) Write(p []byte) (int, error) { return 0, errors.New("broken pipe") }

func TestRenderWriteFailure(t *testing.T) {
	r := canvas.NewRenderer(failingWriter{})
	err := r.RenderProgress(context.Background(), []model.LogEntry{{Message: "x"}})
	gt.Error(t, err)
}
