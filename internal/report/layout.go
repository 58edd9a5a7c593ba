package report

import (
	"fmt"
	"strings"
	"time"
)

const (
	// DefaultTitle is used when no title is given
	DefaultTitle = "Medical Insight Report"
	// DefaultMaxDepth bounds the nesting level rendered as structure
	DefaultMaxDepth = 32
	// IndentWidth is the number of spaces one nesting level adds
	IndentWidth = 4

	timestampLayout = "January 02, 2006 - 15:04"
)

// BlockKind is the role of a block in the document
type BlockKind int

const (
	BlockTitle BlockKind = iota
	BlockTimestamp
	BlockHeading     // top-level key
	BlockSubHeading  // nested mapping or sequence under a key
	BlockItemHeading // "Item N" for a nested element of a sequence
	BlockLine        // "Label: value"
	BlockBullet      // "• value"
	BlockParagraph   // primitive directly under a top-level key
	BlockSpacer
)

func (k BlockKind) String() string {
	switch k {
	case BlockTitle:
		return "title"
	case BlockTimestamp:
		return "timestamp"
	case BlockHeading:
		return "heading"
	case BlockSubHeading:
		return "sub_heading"
	case BlockItemHeading:
		return "item_heading"
	case BlockLine:
		return "line"
	case BlockBullet:
		return "bullet"
	case BlockParagraph:
		return "paragraph"
	case BlockSpacer:
		return "spacer"
	default:
		return "unknown"
	}
}

// IsHeading reports whether the block opens a non-leaf value
func (k BlockKind) IsHeading() bool {
	return k == BlockHeading || k == BlockSubHeading || k == BlockItemHeading
}

// IsLeaf reports whether the block carries a leaf value
func (k BlockKind) IsLeaf() bool {
	return k == BlockLine || k == BlockBullet || k == BlockParagraph
}

// Block is one flat element of the rendered document
type Block struct {
	Kind     BlockKind
	Level    int
	Label    string
	Value    string
	Emphasis bool
	Height   float64
}

// Indent returns the simulated indentation prefix for the block's level
func (b Block) Indent() string {
	return strings.Repeat(" ", IndentWidth*b.Level)
}

// Text returns the plain text of the block as it appears on the page
func (b Block) Text() string {
	switch b.Kind {
	case BlockSubHeading, BlockItemHeading:
		return b.Indent() + b.Label + ":"
	case BlockLine:
		return b.Indent() + b.Label + ": " + b.Value
	case BlockBullet:
		return b.Indent() + "• " + b.Value
	case BlockParagraph:
		return b.Indent() + b.Value
	case BlockSpacer:
		return ""
	default:
		return b.Label
	}
}

// Document is the laid-out form of an insight report
type Document struct {
	Title       string
	GeneratedAt time.Time
	Blocks      []Block
}

// Layout transforms a report into its flat block list. The report must be a
// mapping; anything else is a contract violation.
func Layout(r Value, title string, generatedAt time.Time, maxDepth int) (*Document, error) {
	if r.Kind() != KindMapping {
		return nil, fmt.Errorf("%w: top-level value is a %s", ErrNotMapping, r.Kind())
	}
	if title == "" {
		title = DefaultTitle
	}
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}

	l := &layouter{maxDepth: maxDepth}
	l.emit(Block{Kind: BlockTitle, Label: title})
	l.spacer(12)
	l.emit(Block{Kind: BlockTimestamp, Label: "Generated: " + generatedAt.Format(timestampLayout)})
	l.spacer(12)

	for _, f := range r.Fields() {
		l.emit(Block{Kind: BlockHeading, Label: Label(f.Key)})
		if f.Value.IsLeaf() {
			l.emit(leafBlock(BlockParagraph, 0, "", f.Value))
		} else {
			l.value(f.Value, 0)
		}
		l.spacer(8)
	}

	return &Document{Title: title, GeneratedAt: generatedAt, Blocks: l.blocks}, nil
}

type layouter struct {
	blocks   []Block
	maxDepth int
}

func (l *layouter) emit(b Block) {
	l.blocks = append(l.blocks, b)
}

func (l *layouter) spacer(height float64) {
	l.emit(Block{Kind: BlockSpacer, Height: height})
}

// value renders the children of a container at the given level
func (l *layouter) value(v Value, level int) {
	switch v.Kind() {
	case KindMapping:
		for _, f := range v.Fields() {
			label := Label(f.Key)
			if f.Value.IsLeaf() || l.tooDeep(level) {
				l.emit(leafBlock(BlockLine, level, label, l.flatten(f.Value)))
				continue
			}
			l.emit(Block{Kind: BlockSubHeading, Level: level, Label: label})
			l.value(f.Value, level+1)
		}

	case KindSequence:
		for i, item := range v.Items() {
			if item.IsLeaf() || l.tooDeep(level) {
				l.emit(leafBlock(BlockBullet, level, "", l.flatten(item)))
				continue
			}
			// Elements of a sequence sitting directly under a top-level key are
			// not numbered
			if level > 0 {
				l.emit(Block{Kind: BlockItemHeading, Level: level, Label: fmt.Sprintf("Item %d", i+1)})
			}
			l.value(item, level+1)
		}

	case KindPrimitive:
		// leaves are emitted by the caller
	}
}

// tooDeep reports whether children at level+1 would exceed the depth limit
func (l *layouter) tooDeep(level int) bool {
	return level+1 > l.maxDepth
}

// flatten turns a container that hit the depth limit into a string leaf
func (l *layouter) flatten(v Value) Value {
	if v.IsLeaf() {
		return v
	}
	return String(compact(v))
}

func leafBlock(kind BlockKind, level int, label string, v Value) Block {
	return Block{
		Kind:     kind,
		Level:    level,
		Label:    label,
		Value:    v.Text(),
		Emphasis: IsNumeric(v),
	}
}
