package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/chzyer/readline"
	"github.com/m-mizutani/drivelens/pkg/adapter"
	"github.com/m-mizutani/drivelens/pkg/model"
	"github.com/m-mizutani/drivelens/pkg/usecase/canvas"
	"github.com/m-mizutani/drivelens/pkg/usecase/channel"
	"github.com/m-mizutani/drivelens/pkg/usecase/notify"
	"github.com/m-mizutani/drivelens/pkg/usecase/publish"
	"github.com/m-mizutani/drivelens/pkg/usecase/session"
	"github.com/m-mizutani/drivelens/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"
)

const (
	chatPrompt  = "> "
	savedPrompt = "[saved] > "
	chatHelp    = `Commands:
  /save N   save recommendation N to Lens
  /status   show the last save
  /state    dump the shared agent state
  /quit     leave the chat
Anything else is sent to the agent.`
)

func chatCommand() *cli.Command {
	var cfg config

	flags := globalFlags(&cfg)
	flags = append(flags, agentFlags(&cfg)...)
	flags = append(flags, lensFlags(&cfg)...)
	flags = append(flags, storageFlags(&cfg)...)

	return &cli.Command{
		Name:  "chat",
		Usage: "Research cars with the agent and save picks to Lens",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			ctx, cleanup, err := cfg.setup(ctx, c)
			if err != nil {
				return err
			}
			defer cleanup()
			logger := logging.From(ctx)

			resolver, err := cfg.newResolver()
			if err != nil {
				return err
			}
			endpoint, err := cfg.agentEndpoint()
			if err != nil {
				return err
			}

			rl, err := readline.NewEx(&readline.Config{
				Prompt:          chatPrompt,
				InterruptPrompt: "^C",
				EOFPrompt:       "exit",
				Stdout:          c.Root().Writer,
			})
			if err != nil {
				return goerr.Wrap(err, "failed to start prompt")
			}
			defer rl.Close()

			out := rl.Stdout()
			view, err := openChat(ctx, resolver, adapter.NewAgentDialer(), chatTarget{
				endpoint: endpoint,
				agent:    cfg.agent,
				model:    cfg.model,
			}, out)
			if err != nil {
				return err
			}
			if view == nil {
				return nil
			}
			ch := view.ch
			defer ch.Close()

			pipeline, err := cfg.newPipeline(ctx, resolver)
			if err != nil {
				logger.Warn("saving to lens is disabled", "error", err)
			}

			toast := notify.New(notify.WithOnHide(func(string) {
				rl.SetPrompt(chatPrompt)
				rl.Refresh()
			}))
			defer toast.Close()

			go func() {
				<-ch.Done()
				if err := ch.Err(); err != nil {
					fmt.Fprintf(out, "Agent disconnected: %v\n", err)
					rl.Close()
				}
			}()

			s := &chatSession{
				ch:       ch,
				pipeline: pipeline,
				toast:    toast,
				out:      out,
				setPrompt: func(p string) {
					rl.SetPrompt(p)
					rl.Refresh()
				},
			}
			defer s.wait()

			fmt.Fprintf(out, "Chat session started. Type /help for commands.\n")
			for {
				line, err := rl.Readline()
				if errors.Is(err, readline.ErrInterrupt) {
					if line == "" {
						break
					}
					continue
				}
				if err != nil {
					if !errors.Is(err, io.EOF) {
						logger.Debug("prompt closed", "error", err)
					}
					break
				}

				if quit := s.handle(ctx, strings.TrimSpace(line)); quit {
					break
				}
			}

			fmt.Fprintf(out, "\nChat session completed\n")
			return ch.Err()
		},
	}
}

// chatTarget is the agent a chat connects to
type chatTarget struct {
	endpoint string
	agent    string
	model    string
}

// chatView is an open chat with the canvas subscribed to the channel
type chatView struct {
	identity *model.SessionIdentity
	ch       *channel.Channel
}

// openChat resolves the caller. When nobody is logged in it draws the landing
// view and returns nil without dialing the agent; otherwise it draws the
// header and opens the channel.
func openChat(ctx context.Context, resolver *session.Resolver, dialer adapter.AgentDialer, target chatTarget, w io.Writer) (*chatView, error) {
	identity, err := resolver.Resolve(ctx)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to resolve identity")
	}

	renderer := canvas.NewRenderer(w)
	if identity == nil {
		return nil, renderer.Landing()
	}
	if err := renderer.Header(identity); err != nil {
		return nil, err
	}

	ch, err := channel.Open(ctx, dialer, target.endpoint, target.agent,
		model.AgentState{Model: target.model},
		channel.WithProgressHandler("canvas", renderer.RenderProgress),
		channel.WithStateHandler("canvas", renderer.RenderState),
		channel.WithMessageHandler("canvas", renderer.RenderMessage),
	)
	if err != nil {
		return nil, err
	}

	return &chatView{identity: identity, ch: ch}, nil
}

// chatSession handles prompt input for one open channel
type chatSession struct {
	ch        *channel.Channel
	pipeline  *publish.Pipeline
	toast     *notify.Toast
	out       io.Writer
	setPrompt func(string)

	saving   atomic.Bool
	lastSave atomic.Value // model.RequestID
	wg       sync.WaitGroup
}

// handle runs one line of input and reports whether the chat should end
func (s *chatSession) handle(ctx context.Context, line string) bool {
	cmd, arg, _ := strings.Cut(line, " ")
	switch cmd {
	case "":
		return false

	case "/quit", "/exit", "exit":
		return true

	case "/help":
		fmt.Fprintln(s.out, chatHelp)

	case "/state":
		snap := s.ch.State()
		data, err := json.MarshalIndent(snap.State, "", "  ")
		if err != nil {
			fmt.Fprintf(s.out, "Failed to marshal state: %v\n", err)
			return false
		}
		fmt.Fprintf(s.out, "version %d\n%s\n", snap.Version, string(data))

	case "/status":
		s.printStatus()

	case "/save":
		s.save(ctx, strings.TrimSpace(arg))

	default:
		if strings.HasPrefix(cmd, "/") {
			fmt.Fprintf(s.out, "Unknown command %s. Type /help for commands.\n", cmd)
			return false
		}
		if err := s.ch.Send(ctx, line); err != nil {
			fmt.Fprintf(s.out, "Failed to send message: %v\n", err)
		}
	}
	return false
}

func (s *chatSession) printStatus() {
	status := model.PublishStatusIdle
	if id, ok := s.lastSave.Load().(model.RequestID); ok && s.pipeline != nil {
		status = s.pipeline.Tracker().Status(id)
	}
	fmt.Fprintf(s.out, "last save: %s\n", status)
	if link := s.toast.Link(); link != "" {
		fmt.Fprintf(s.out, "%s\n", link)
	}
}

func (s *chatSession) save(ctx context.Context, arg string) {
	if s.pipeline == nil {
		fmt.Fprintf(s.out, "Saving is disabled, check the storage settings\n")
		return
	}

	recs := canvas.Project(s.ch.State().State)
	n, err := strconv.Atoi(arg)
	if err != nil || n < 1 || n > len(recs) {
		fmt.Fprintf(s.out, "Usage: /save N (1-%d)\n", len(recs))
		return
	}
	rec := recs[n-1]

	if !s.saving.CompareAndSwap(false, true) {
		fmt.Fprintf(s.out, "Saving... please wait\n")
		return
	}

	id := model.NewRequestID()
	s.lastSave.Store(id)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.saving.Store(false)

		outcome, err := runPublish(ctx, s.out, s.pipeline, id, rec)
		switch {
		case model.IsUnauthenticated(err):
			fmt.Fprintf(s.out, "Please log in to Lens before saving\n")
		case err != nil:
			fmt.Fprintf(s.out, "Failed to save %s: %v\n", rec.Car, err)
		default:
			s.toast.Show(outcome.TxHash)
			s.setPrompt(savedPrompt)
			fmt.Fprintf(s.out, "Saved %s: %s\n", rec.Car, s.toast.Link())
		}
	}()
}

// wait blocks until a running save finishes
func (s *chatSession) wait() {
	s.wg.Wait()
}
