// Package command interprets maintainer comments on compliance issues and
// carries out the requested actions.
package command

import (
	"strings"

	"github.com/danielolaszy/codefair/internal/compliance"
)

// Directive is one action requested in a comment.
type Directive string

const (
	// DirectiveLicense adds the license named by the argument.
	DirectiveLicense Directive = "license"
	// DirectiveGenerate gathers metadata and posts a citation for review.
	DirectiveGenerate Directive = "generate"
	// DirectiveUpdate merges a maintainer edit into the pending citation.
	DirectiveUpdate Directive = "update"
	// DirectiveContinue publishes the pending citation.
	DirectiveContinue Directive = "continue"
)

const (
	updateToken   = "UPDATE"
	continueToken = "CONTINUE"
)

// Command is a parsed comment.
type Command struct {
	Kind       compliance.Kind
	Directives []Directive
	// Argument is the token following the mention, used as the license
	// identifier.
	Argument string
	Body     string
}

// Has reports whether d was requested.
func (c Command) Has(d Directive) bool {
	for _, have := range c.Directives {
		if have == d {
			return true
		}
	}
	return false
}

// Interpreter recognises commands addressed to the bot.
type Interpreter struct {
	mention string
}

// NewInterpreter creates an interpreter for the given mention token.
func NewInterpreter(mention string) *Interpreter {
	return &Interpreter{mention: mention}
}

// Mention is the token commands must contain.
func (i *Interpreter) Mention() string {
	return i.mention
}

// Authorized reports whether an author association may issue commands.
func Authorized(association string) bool {
	return association == "OWNER" || association == "MEMBER"
}

// Parse reads a comment posted on the issue titled issueTitle. It returns
// false when the comment is not a command: the issue is not a compliance
// issue, the author is neither owner nor member, or the bot is not
// mentioned.
func (i *Interpreter) Parse(issueTitle, association, body string) (Command, bool) {
	kind, ok := compliance.ByTitle(issueTitle)
	if !ok || !Authorized(association) || !strings.Contains(body, i.mention) {
		return Command{}, false
	}

	cmd := Command{Kind: kind, Body: body}

	if kind.Affirmative == "" {
		cmd.Argument = i.argument(body)
		cmd.Directives = []Directive{DirectiveLicense}
		return cmd, true
	}

	// Checked in execution order; several may apply to one comment.
	if strings.Contains(body, kind.Affirmative) {
		cmd.Directives = append(cmd.Directives, DirectiveGenerate)
	}
	if strings.Contains(body, updateToken) {
		cmd.Directives = append(cmd.Directives, DirectiveUpdate)
	}
	if strings.Contains(body, continueToken) {
		cmd.Directives = append(cmd.Directives, DirectiveContinue)
	}
	if len(cmd.Directives) == 0 {
		return Command{}, false
	}
	return cmd, true
}

// argument returns the first whitespace-delimited token after the mention.
func (i *Interpreter) argument(body string) string {
	fields := strings.Fields(body)
	for idx, f := range fields {
		if f == i.mention && idx+1 < len(fields) {
			return fields[idx+1]
		}
	}
	return ""
}

// UpdateDirective is the text that ends a maintainer's citation edit.
func (i *Interpreter) UpdateDirective() string {
	return i.mention + " " + updateToken
}
