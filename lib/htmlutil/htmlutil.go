package htmlutil

import (
	"bytes"
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/net/html"
)

func GetText(node *html.Node) string {
	var buffer bytes.Buffer
	getTextRecursive(node, &buffer)
	return buffer.String()
}

func getTextRecursive(node *html.Node, buffer *bytes.Buffer) {
	if node == nil {
		return
	}
	if node.Type == html.TextNode {
		buffer.WriteString(node.Data)
		return
	}
	child := node.FirstChild
	for child != nil {
		getTextRecursive(child, buffer)
		child = child.NextSibling
	}
}

var innerWhitespace = regexp.MustCompile(`\s\s+`)

func removeNonPrintable(s string) string {
	newStr := strings.Builder{}
	for _, c := range s {
		if unicode.IsPrint(c) || c == '\n' {
			newStr.WriteRune(c)
		}
	}
	return newStr.String()
}

func CleanText(s string) string {
	s = removeNonPrintable(s)
	s = strings.Trim(s, " \t\n")
	s = innerWhitespace.ReplaceAllString(s, " ")
	return s
}

var invisibleTags = map[string]bool{
	"script":   true,
	"style":    true,
	"noscript": true,
	"template": true,
	"head":     true,
}

// VisibleText approximates the text a browser would render for the
// subtree, script/style and other non-rendered content excluded.
func VisibleText(node *html.Node) string {
	var buffer bytes.Buffer
	visibleTextRecursive(node, &buffer)
	return strings.TrimSpace(buffer.String())
}

func visibleTextRecursive(node *html.Node, buffer *bytes.Buffer) {
	if node == nil {
		return
	}
	if node.Type == html.ElementNode && invisibleTags[node.Data] {
		return
	}
	if node.Type == html.TextNode {
		trimmed := strings.TrimSpace(node.Data)
		if trimmed != "" {
			buffer.WriteString(trimmed)
			buffer.WriteString(" ")
		}
		return
	}
	child := node.FirstChild
	for child != nil {
		visibleTextRecursive(child, buffer)
		child = child.NextSibling
	}
	if node.Type == html.ElementNode {
		switch node.Data {
		case "p", "div", "tr", "li", "br", "h1", "h2", "h3", "h4", "table":
			buffer.WriteString("\n")
		}
	}
}

// LeafTextNodes collects every rendered text node in document order.
func LeafTextNodes(root *html.Node) []*html.Node {
	var leaves []*html.Node
	var walk func(node *html.Node)
	walk = func(node *html.Node) {
		if node == nil {
			return
		}
		if node.Type == html.ElementNode && invisibleTags[node.Data] {
			return
		}
		if node.Type == html.TextNode && strings.TrimSpace(node.Data) != "" {
			leaves = append(leaves, node)
			return
		}
		child := node.FirstChild
		for child != nil {
			walk(child)
			child = child.NextSibling
		}
	}
	walk(root)
	return leaves
}

// ClosestAncestor walks up from the node until it finds an element whose
// tag is in `tags`, returning nil when none matches.
func ClosestAncestor(node *html.Node, tags map[string]bool) *html.Node {
	current := node.Parent
	for current != nil {
		if current.Type == html.ElementNode && tags[current.Data] {
			return current
		}
		current = current.Parent
	}
	return nil
}
