package model

import "time"

// ContentItem is a candidate image post returned by a content source.
// Items are never mutated after they are fetched.
type ContentItem struct {
	ID        string `json:"id"`                 // Source-assigned identifier (e.g., reddit base36 id)
	Title     string `json:"title"`              // Post title
	URL       string `json:"url"`                // Direct image URL
	Permalink string `json:"permalink"`          // Short link back to the post
	Category  string `json:"category,omitempty"` // Category the item was listed under (e.g., subreddit)
}

// Annotation is the machine-generated description of an image
type Annotation struct {
	CaptionText  string  `json:"caption_text"`             // Best description of the image
	Confidence   float64 `json:"confidence"`               // Confidence of the description in [0,1]
	IsExplicit   bool    `json:"is_explicit"`              // Safety classifier verdict
	AdultScore   float64 `json:"adult_score,omitempty"`    // Raw adult score when the provider reports one
	RawErrorCode string  `json:"raw_error_code,omitempty"` // Provider error code; non-empty means unusable
	Provider     string  `json:"provider,omitempty"`       // Annotation provider name
}

// Usable reports whether the annotation can be turned into a caption
func (a Annotation) Usable() bool {
	return a.RawErrorCode == ""
}

// Publication records one successful publish
type Publication struct {
	ID          string      `json:"id"`                   // Publisher-assigned identifier (e.g., tweet id)
	ItemID      string      `json:"item_id"`              // ContentItem.ID that was published
	ImageURL    string      `json:"image_url"`            // Image that was uploaded
	Caption     string      `json:"caption"`              // Final caption text
	Permalink   string      `json:"permalink"`            // ContentItem.Permalink
	Category    string      `json:"category,omitempty"`   // Category the item came from
	Publisher   string      `json:"publisher"`            // twitter, telegram, dryrun
	PublishedAt time.Time   `json:"published_at"`         // When the publish call returned
	RunID       string      `json:"run_id,omitempty"`     // Pipeline run that produced it
	Annotation  *Annotation `json:"annotation,omitempty"` // Annotation the caption was composed from
}

// Image is a downloaded image ready for upload
type Image struct {
	URL      string // Source URL
	Data     []byte // Raw bytes as served
	MIMEType string // Content-Type without parameters (e.g., image/jpeg)
	Format   string // Decoder name reported by image.DecodeConfig
	Width    int
	Height   int
}
