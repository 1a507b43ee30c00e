// Package jira adapts the Jira REST API to the tracker interfaces.
package jira

import (
	"encoding/json"
	"strings"
)

// Issue represents a Jira issue from the REST API.
type Issue struct {
	ID     string      `json:"id"`
	Key    string      `json:"key"`
	Self   string      `json:"self"`
	Fields IssueFields `json:"fields"`
}

// IssueFields contains the fields of a Jira issue.
type IssueFields struct {
	Summary     string          `json:"summary"`
	Description json.RawMessage `json:"description"` // ADF (Atlassian Document Format) or plain text
	Status      *StatusField    `json:"status"`
	IssueType   *IssueTypeField `json:"issuetype"`
	Parent      *ParentField    `json:"parent"`
	Labels      []string        `json:"labels"`
	Created     string          `json:"created"`
	Updated     string          `json:"updated"`
}

// StatusField represents a Jira issue status.
type StatusField struct {
	ID             string               `json:"id"`
	Name           string               `json:"name"`
	StatusCategory *StatusCategoryField `json:"statusCategory"`
}

// StatusCategoryField is the coarse grouping of a status (To Do, In
// Progress, Done).
type StatusCategoryField struct {
	ID   int    `json:"id"`
	Key  string `json:"key"`
	Name string `json:"name"`
}

// IssueTypeField represents a Jira issue type.
type IssueTypeField struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Subtask bool   `json:"subtask"`
}

// ParentField is the parent issue reference.
type ParentField struct {
	ID  string `json:"id"`
	Key string `json:"key"`
}

// Transition is one workflow transition available from the current status.
type Transition struct {
	ID   string      `json:"id"`
	Name string      `json:"name"`
	To   StatusField `json:"to"`
}

type transitionsResponse struct {
	Transitions []Transition `json:"transitions"`
}

// issueView adapts *Issue to tracker.Issue.
type issueView struct {
	issue *Issue
}

func (v issueView) Key() string { return v.issue.Key }

func (v issueView) StatusName() string {
	if v.issue.Fields.Status == nil {
		return ""
	}
	return v.issue.Fields.Status.Name
}

func (v issueView) StatusCategory() string {
	s := v.issue.Fields.Status
	if s == nil || s.StatusCategory == nil {
		return ""
	}
	return s.StatusCategory.Name
}

func (v issueView) Labels() []string { return v.issue.Fields.Labels }

func (v issueView) Summary() string { return v.issue.Fields.Summary }

func (v issueView) Description() string {
	return DescriptionToPlainText(v.issue.Fields.Description)
}

func (v issueView) IssueType() string {
	if v.issue.Fields.IssueType == nil {
		return ""
	}
	return v.issue.Fields.IssueType.Name
}

// ParentKey returns the parent issue key, if any.
func (v issueView) ParentKey() string {
	if v.issue.Fields.Parent == nil {
		return ""
	}
	return v.issue.Fields.Parent.Key
}

// DescriptionToPlainText extracts plain text from Jira's ADF (Atlassian
// Document Format). Paragraphs and headings become lines, list items are
// rendered as "- item", and headings keep a markdown "#" prefix so that
// section parsing still works on the result. Plain strings pass through.
func DescriptionToPlainText(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}

	var doc adfNode
	if err := json.Unmarshal(raw, &doc); err != nil || doc.Type != "doc" {
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			return s
		}
		return string(raw)
	}

	var lines []string
	for _, block := range doc.Content {
		lines = appendBlock(lines, block, 0)
	}
	return strings.Join(lines, "\n")
}

type adfNode struct {
	Type    string          `json:"type"`
	Text    string          `json:"text"`
	Attrs   json.RawMessage `json:"attrs"`
	Content []adfNode       `json:"content"`
}

func appendBlock(lines []string, n adfNode, depth int) []string {
	switch n.Type {
	case "heading":
		level := 1
		var attrs struct {
			Level int `json:"level"`
		}
		if json.Unmarshal(n.Attrs, &attrs) == nil && attrs.Level > 0 {
			level = attrs.Level
		}
		return append(lines, strings.Repeat("#", level)+" "+inlineText(n))
	case "bulletList", "orderedList":
		for _, item := range n.Content {
			lines = appendListItem(lines, item, depth)
		}
		return lines
	case "codeBlock":
		return append(lines, "```", inlineText(n), "```")
	case "rule":
		return append(lines, "---")
	}
	if text := inlineText(n); text != "" {
		lines = append(lines, text)
	}
	return lines
}

func appendListItem(lines []string, item adfNode, depth int) []string {
	indent := strings.Repeat("  ", depth)
	first := true
	for _, child := range item.Content {
		switch child.Type {
		case "bulletList", "orderedList":
			lines = appendBlock(lines, child, depth+1)
		default:
			text := inlineText(child)
			if text == "" {
				continue
			}
			if first {
				lines = append(lines, indent+"- "+text)
				first = false
			} else {
				lines = append(lines, indent+"  "+text)
			}
		}
	}
	return lines
}

func inlineText(n adfNode) string {
	if n.Type == "text" {
		return n.Text
	}
	if n.Type == "hardBreak" {
		return " "
	}
	var sb strings.Builder
	for _, c := range n.Content {
		sb.WriteString(inlineText(c))
	}
	return strings.TrimSpace(sb.String())
}
