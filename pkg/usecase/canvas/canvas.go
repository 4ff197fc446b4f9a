package canvas

import (
	"context"
	"fmt"
	"io"
	"slices"
	"strings"
	"sync"

	"github.com/m-mizutani/drivelens/pkg/model"
	"github.com/m-mizutani/goerr/v2"
)

const (
	Title       = "🚘 Drivelens - AI Car Recommendations on Lens Protocol"
	UnnamedUser = "Unnamed"
)

var landingText = []string{
	"🚘 DriveLens - AI Car Recommendations",
	"Your expert AI car research assistant on Lens Protocol.",
	"",
	"  🚘 Ask in natural language for the best car recommendations tailored to your needs.",
	"  🧠 AI-generated car suggestions curated by preferences and needs.",
	"  💾 Save your top picks to the global Lens feed and access them anytime.",
	"  🔐 Log in with Lens. Your wallet is your identity.",
	"",
	"Run `drivelens login` to get started.",
}

// Project returns the recommendations to display, in the order the agent sent
// them. The result is never nil.
func Project(state model.AgentState) []model.Recommendation {
	if len(state.Recommendations) == 0 {
		return []model.Recommendation{}
	}
	return state.Recommendations
}

// Renderer draws the recommendation canvas as text. It is safe for use from
// the channel loop and the prompt at the same time.
type Renderer struct {
	mu sync.Mutex
	w  io.Writer

	lastRecs   []model.Recommendation
	lastReview *model.DetailedReview
}

func NewRenderer(w io.Writer) *Renderer {
	return &Renderer{w: w}
}

func (r *Renderer) write(lines ...string) error {
	if _, err := io.WriteString(r.w, strings.Join(lines, "\n")+"\n"); err != nil {
		return goerr.Wrap(err, "failed to write canvas")
	}
	return nil
}

// Landing draws the anonymous view with the login affordance
func (r *Renderer) Landing() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.write(landingText...)
}

// Header draws the title bar with the identity line
func (r *Renderer) Header(identity *model.SessionIdentity) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.write(Title, IdentityLine(identity), "")
}

// IdentityLine formats the avatar initials, display name and address
func IdentityLine(identity *model.SessionIdentity) string {
	name := identity.Name()
	if name == "" {
		name = UnnamedUser
	}
	var addr string
	if identity != nil {
		addr = identity.Address
	}
	return fmt.Sprintf("[%s] %s (%s)", identity.Initials(), name, addr)
}

// Card formats one recommendation with its 1-based display index
func Card(number int, rec model.Recommendation) string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%d] %s\n", number, rec.Car)
	if rec.Tagline != "" {
		fmt.Fprintf(&b, "    %q\n", rec.Tagline)
	}
	if rec.Content != "" {
		fmt.Fprintf(&b, "    %s\n", rec.Content)
	}
	return b.String()
}

// RenderState draws the recommendations and the detailed review when they
// differ from what was drawn last
func (r *Renderer) RenderState(ctx context.Context, snap model.Snapshot) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	recs := Project(snap.State)
	if !slices.Equal(recs, r.lastRecs) {
		r.lastRecs = slices.Clone(recs)
		if len(recs) > 0 {
			lines := []string{"", "Recommendations"}
			for i, rec := range recs {
				lines = append(lines, strings.TrimSuffix(Card(i+1, rec), "\n"))
			}
			if err := r.write(lines...); err != nil {
				return err
			}
		}
	}

	review := snap.State.DetailedReview
	if review != nil && (r.lastReview == nil || *review != *r.lastReview) {
		copied := *review
		r.lastReview = &copied
		if err := r.write("", "Detailed review: "+review.CarName, review.ReviewText); err != nil {
			return err
		}
	}
	return nil
}

// RenderProgress draws the agent's progress log. A nil log draws nothing.
func (r *Renderer) RenderProgress(ctx context.Context, logs []model.LogEntry) error {
	if len(logs) == 0 {
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	lines := make([]string, 0, len(logs))
	for _, entry := range logs {
		mark := "[ ]"
		if entry.Done {
			mark = "[x]"
		}
		lines = append(lines, "  "+mark+" "+entry.Message)
	}
	return r.write(lines...)
}

// RenderMessage draws an assistant reply
func (r *Renderer) RenderMessage(ctx context.Context, msg model.AssistantMessage) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if msg.Role == "error" {
		return r.write("agent error: " + msg.Content)
	}
	return r.write(msg.Content)
}
