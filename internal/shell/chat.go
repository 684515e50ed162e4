// Package shell provides the interactive BytEdge chat.
//
// Chat holds the line handling and is independent of the terminal; Run drives it from a readline prompt.
// Lines starting with a backslash are shell commands, everything else is sent to the agent.
package shell

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"bytedge/internal/logger"
	"bytedge/internal/router"
	"bytedge/pkg/edgetypes"
)

// CommandPrefix marks a line as a shell command rather than a message.
const CommandPrefix = `\`

// Commands lists the shell commands, used for help and completion.
var Commands = []string{`\agent`, `\agents`, `\history`, `\new`, `\help`, `\exit`}

// autoAgent selects classifier routing in `\agent auto`.
const autoAgent = "auto"

// Renderer turns an answer into terminal output. services.MarkdownService satisfies it.
type Renderer interface {
	Render(markdown string) (string, error)
}

var (
	agentStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39"))
	errorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("204"))
	dimStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
)

// Chat is one interactive conversation bound to a single session at a time.
type Chat struct {
	router   *router.Router
	out      io.Writer
	renderer Renderer

	agentID   string
	sessionID string
}

// NewChat creates a Chat. An empty agentID lets the classifier pick the agent per message.
// renderer may be nil for raw output.
func NewChat(r *router.Router, agentID string, out io.Writer, renderer Renderer) (*Chat, error) {
	if agentID == autoAgent {
		agentID = ""
	}
	if agentID != "" {
		if _, err := r.Registry().Lookup(agentID); err != nil {
			return nil, err
		}
	}
	return &Chat{router: r, out: out, renderer: renderer, agentID: agentID}, nil
}

// AgentID returns the pinned agent, or "" when routing by classifier.
func (c *Chat) AgentID() string { return c.agentID }

// SessionID returns the current session id, or "" before the first answer.
func (c *Chat) SessionID() string { return c.sessionID }

// SetSession continues an existing session.
func (c *Chat) SetSession(id string) { c.sessionID = id }

// Prompt returns the shell prompt for the current agent.
func (c *Chat) Prompt() string {
	if c.agentID == "" {
		return "bytedge> "
	}
	return fmt.Sprintf("bytedge[%s]> ", c.agentID)
}

// Handle processes one input line. It returns true when the user asked to quit.
func (c *Chat) Handle(ctx context.Context, line string) bool {
	line = strings.TrimSpace(line)
	if line == "" {
		return false
	}

	if !strings.HasPrefix(line, CommandPrefix) {
		c.ask(ctx, line)
		return false
	}

	fields := strings.Fields(line)
	switch fields[0] {
	case `\exit`, `\quit`:
		return true
	case `\help`:
		c.help()
	case `\agents`:
		c.listAgents()
	case `\agent`:
		if len(fields) < 2 {
			c.println("current agent: %s", c.describeAgent())
			return false
		}
		c.switchAgent(fields[1])
	case `\history`:
		c.history()
	case `\new`:
		c.sessionID = ""
		c.println(dimStyle.Render("started a new conversation"))
	default:
		c.println(errorStyle.Render(fmt.Sprintf("unknown command %s (try \\help)", fields[0])))
	}
	return false
}

func (c *Chat) ask(ctx context.Context, message string) {
	resp, err := c.router.Respond(ctx, router.Request{
		Message:   message,
		AgentID:   c.agentID,
		SessionID: c.sessionID,
	})
	if err != nil {
		c.printError(err)
		return
	}

	c.sessionID = resp.SessionID
	c.println(agentStyle.Render(resp.AgentName))
	c.println(c.render(resp.Text))
}

func (c *Chat) render(text string) string {
	if c.renderer == nil {
		return text
	}
	rendered, err := c.renderer.Render(text)
	if err != nil {
		logger.Debug("markdown rendering failed, printing raw text", "error", err)
		return text
	}
	return strings.TrimRight(rendered, "\n")
}

func (c *Chat) switchAgent(id string) {
	if id == autoAgent {
		c.agentID = ""
		c.sessionID = ""
		c.println(dimStyle.Render("routing messages by topic; started a new conversation"))
		return
	}

	profile, err := c.router.Registry().Lookup(id)
	if err != nil {
		c.printError(err)
		return
	}
	c.agentID = profile.ID
	c.sessionID = ""
	c.println("now talking to %s; started a new conversation", agentStyle.Render(profile.DisplayName))
}

func (c *Chat) listAgents() {
	for _, p := range c.router.Registry().List() {
		marker := "  "
		if p.ID == c.agentID {
			marker = "* "
		}
		c.println("%s%-8s %s %s", marker, p.ID, agentStyle.Render(p.DisplayName), dimStyle.Render(p.Domain))
	}
}

func (c *Chat) history() {
	if c.sessionID == "" {
		c.println(dimStyle.Render("no messages yet"))
		return
	}
	turns := c.router.History(c.sessionID)
	c.println(dimStyle.Render(fmt.Sprintf("conversation %s, %d turns", c.sessionID, len(turns))))
	for _, t := range turns {
		c.println("%s %s", dimStyle.Render("you:"), t.UserText)
		c.println("%s %s", agentStyle.Render(t.AgentID+":"), t.AssistantText)
	}
}

func (c *Chat) help() {
	c.println(`Type a question to ask the current agent.
  \agents          list agents
  \agent <id>      talk to a specific agent (starts a new conversation)
  \agent auto      pick the agent from each message's topic
  \history         show this conversation
  \new             start a new conversation
  \exit            quit`)
}

func (c *Chat) describeAgent() string {
	if c.agentID == "" {
		return "auto (routed by topic)"
	}
	return c.agentID
}

func (c *Chat) printError(err error) {
	msg := err.Error()
	switch {
	case errors.Is(err, edgetypes.ErrEmptyMessage):
		msg = "message cannot be empty"
	case errors.Is(err, edgetypes.ErrGenerationFailed):
		msg = "the agent could not answer right now, please try again"
		logger.Debug("generation failed", "error", err)
	}
	c.println(errorStyle.Render(msg))
}

func (c *Chat) println(format string, args ...any) {
	if len(args) == 0 {
		fmt.Fprintln(c.out, format)
		return
	}
	fmt.Fprintf(c.out, format+"\n", args...)
}
