package invocation

import (
	"strings"

	mcpapi "github.com/mark3labs/mcp-go/mcp"
)

// NoOutput is the text of a result whose reply carried no content segments.
const NoOutput = "Tool executed successfully"

// SegmentKind distinguishes text from summarized binary content.
type SegmentKind string

const (
	SegmentText   SegmentKind = "text"
	SegmentBinary SegmentKind = "binary"
)

// Segment is one normalized piece of a tool reply. Binary segments keep only
// their media type; the payload is dropped.
type Segment struct {
	Kind     SegmentKind `json:"kind"`
	Value    string      `json:"value,omitempty"`
	MIMEType string      `json:"mimeType,omitempty"`
}

// Placeholder is the text a binary segment contributes to the result.
func (s Segment) Placeholder() string {
	if strings.HasPrefix(s.MIMEType, "image/") {
		return "[Image captured: " + s.MIMEType + "]"
	}
	mime := s.MIMEType
	if mime == "" {
		mime = "application/octet-stream"
	}
	return "[Binary data: " + mime + "]"
}

func (s Segment) text() string {
	if s.Kind == SegmentBinary {
		return s.Placeholder()
	}
	return s.Value
}

// Result is the normalized outcome of one invocation.
type Result struct {
	Name     string    `json:"name"`
	Segments []Segment `json:"segments"`
}

// Empty reports whether the reply had no segments at all. An empty text
// segment is not empty in this sense.
func (r Result) Empty() bool { return len(r.Segments) == 0 }

// Text joins the segments in arrival order, one per line. A reply without
// segments yields NoOutput.
func (r Result) Text() string {
	if r.Empty() {
		return NoOutput
	}
	parts := make([]string, len(r.Segments))
	for i, s := range r.Segments {
		parts[i] = s.text()
	}
	return strings.Join(parts, "\n")
}

// Append returns a result holding r's segments followed by other's.
func (r Result) Append(other Result) Result {
	segs := make([]Segment, 0, len(r.Segments)+len(other.Segments))
	segs = append(segs, r.Segments...)
	segs = append(segs, other.Segments...)
	return Result{Name: r.Name, Segments: segs}
}

// Normalize converts raw reply content into segments. Unrecognized content
// kinds are summarized as binary data.
func Normalize(name string, content []mcpapi.Content) Result {
	segs := make([]Segment, 0, len(content))
	for _, c := range content {
		segs = append(segs, toSegment(c))
	}
	return Result{Name: name, Segments: segs}
}

func toSegment(c mcpapi.Content) Segment {
	switch v := c.(type) {
	case mcpapi.TextContent:
		return Segment{Kind: SegmentText, Value: v.Text}
	case *mcpapi.TextContent:
		return Segment{Kind: SegmentText, Value: v.Text}
	case mcpapi.ImageContent:
		return Segment{Kind: SegmentBinary, MIMEType: v.MIMEType}
	case *mcpapi.ImageContent:
		return Segment{Kind: SegmentBinary, MIMEType: v.MIMEType}
	case mcpapi.AudioContent:
		return Segment{Kind: SegmentBinary, MIMEType: v.MIMEType}
	case *mcpapi.AudioContent:
		return Segment{Kind: SegmentBinary, MIMEType: v.MIMEType}
	case mcpapi.EmbeddedResource:
		return resourceSegment(v.Resource)
	case *mcpapi.EmbeddedResource:
		return resourceSegment(v.Resource)
	case mcpapi.ResourceLink:
		return linkSegment(v)
	case *mcpapi.ResourceLink:
		return linkSegment(*v)
	}
	return Segment{Kind: SegmentBinary}
}

// linkSegment renders a resource reference as "name <uri>".
func linkSegment(l mcpapi.ResourceLink) Segment {
	if l.Name == "" {
		return Segment{Kind: SegmentText, Value: l.URI}
	}
	return Segment{Kind: SegmentText, Value: l.Name + " <" + l.URI + ">"}
}

func resourceSegment(r mcpapi.ResourceContents) Segment {
	switch v := r.(type) {
	case mcpapi.TextResourceContents:
		return Segment{Kind: SegmentText, Value: v.Text}
	case *mcpapi.TextResourceContents:
		return Segment{Kind: SegmentText, Value: v.Text}
	case mcpapi.BlobResourceContents:
		return Segment{Kind: SegmentBinary, MIMEType: v.MIMEType}
	case *mcpapi.BlobResourceContents:
		return Segment{Kind: SegmentBinary, MIMEType: v.MIMEType}
	}
	return Segment{Kind: SegmentBinary}
}
