package pages

const (
	// PlaceholderTitle is rendered when a page has no saved title.
	PlaceholderTitle = "Untitled Page"
	// PlaceholderContent is rendered when a page has no saved body text.
	PlaceholderContent = "No content available"
)

// BlockType enumerates the kinds of blocks a rendered page contains.
type BlockType string

const (
	// BlockTitle is the page heading block.
	BlockTitle BlockType = "title"
	// BlockText is the page body block.
	BlockText BlockType = "text"
	// BlockImage is one positioned image block.
	BlockImage BlockType = "image"
)

// Block is one element of a rendered page layout.
type Block struct {
	Type        BlockType     `json:"type"`
	Text        string        `json:"text,omitempty"`
	Placeholder bool          `json:"placeholder,omitempty"`
	FileName    string        `json:"file_name,omitempty"`
	URL         string        `json:"url,omitempty"`
	Width       int           `json:"width,omitempty"`
	Alignment   ImagePosition `json:"alignment,omitempty"`
	HideOnError bool          `json:"hide_on_error,omitempty"`
}

// LayoutTree is the visual layout description produced for one page. The
// public site and the editor's live preview both consume it, so staff see
// exactly what visitors will see.
type LayoutTree struct {
	PageKey string  `json:"page_key"`
	Blocks  []Block `json:"blocks"`
}

// URLResolver derives the public URL for a file on the rendered page. It
// must be a pure derivation; Render performs no network calls.
type URLResolver func(fileName string) string

// Render produces the layout for a page record. It is deterministic: the
// same record always yields the same tree. Stored widths are clamped to
// MaxDisplayWidth, unknown positions fall back to left, and image blocks are
// marked to hide on load failure so a broken object never breaks the layout.
func Render(record Record, urlFor URLResolver) LayoutTree {
	blocks := make([]Block, 0, 2+len(record.Images()))

	title := record.Title
	titlePlaceholder := false
	if title == "" {
		title = PlaceholderTitle
		titlePlaceholder = true
	}
	blocks = append(blocks, Block{Type: BlockTitle, Text: title, Placeholder: titlePlaceholder})

	content := record.Content
	contentPlaceholder := false
	if content == "" {
		content = PlaceholderContent
		contentPlaceholder = true
	}
	blocks = append(blocks, Block{Type: BlockText, Text: content, Placeholder: contentPlaceholder})

	for _, layout := range record.Images() {
		url := ""
		if urlFor != nil {
			url = urlFor(layout.FileName)
		}
		blocks = append(blocks, Block{
			Type:        BlockImage,
			FileName:    layout.FileName,
			URL:         url,
			Width:       DisplayWidth(layout.Width),
			Alignment:   NormalizePosition(layout.Position),
			HideOnError: true,
		})
	}

	return LayoutTree{PageKey: record.PageKey, Blocks: blocks}
}
