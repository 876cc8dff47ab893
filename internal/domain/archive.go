package domain

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"
)

// CaptionSessionRecord is the archived summary of a session that reached a
// terminal state.
type CaptionSessionRecord struct {
	ID             string     `gorm:"type:varchar(36);primaryKey" json:"id"`
	Source         string     `gorm:"not null;column:source" json:"source"`
	SourceLanguage string     `gorm:"column:source_language" json:"source_language,omitempty"`
	TargetLanguage string     `gorm:"not null;column:target_language" json:"target_language"`
	State          string     `gorm:"not null;index;column:state" json:"state"`
	ErrorKind      string     `gorm:"column:error_kind" json:"error_kind,omitempty"`
	ErrorDetail    string     `gorm:"column:error_detail" json:"error_detail,omitempty"`
	SegmentCount   int        `gorm:"not null;default:0;column:segment_count" json:"segment_count"`
	StartedAt      *time.Time `gorm:"column:started_at" json:"started_at,omitempty"`
	EndedAt        *time.Time `gorm:"column:ended_at" json:"ended_at,omitempty"`
	CreatedAt      time.Time  `gorm:"not null;index" json:"created_at"`
	UpdatedAt      time.Time  `gorm:"not null" json:"updated_at"`
}

func (CaptionSessionRecord) TableName() string { return "caption_session" }

// CaptionSegmentRecord is one archived caption interval. Translations holds a
// JSON object keyed by target language tag.
type CaptionSegmentRecord struct {
	ID           uint           `gorm:"primaryKey;autoIncrement" json:"-"`
	SessionID    string         `gorm:"type:varchar(36);not null;uniqueIndex:idx_caption_segment_session_seq,priority:1;column:session_id" json:"session_id"`
	Seq          int            `gorm:"not null;uniqueIndex:idx_caption_segment_session_seq,priority:2;column:seq" json:"seq"`
	Start        float64        `gorm:"not null;column:start_sec" json:"start"`
	End          float64        `gorm:"not null;column:end_sec" json:"end"`
	DetectedText string         `gorm:"not null;column:detected_text" json:"detected_text"`
	Translations datatypes.JSON `gorm:"column:translations" json:"translations,omitempty"`
	CreatedAt    time.Time      `gorm:"not null" json:"created_at"`
}

func (CaptionSegmentRecord) TableName() string { return "caption_segment" }

// Segment converts the record back to a caption segment for target.
func (r CaptionSegmentRecord) Segment(target string) CaptionSegment {
	seg := CaptionSegment{Start: r.Start, End: r.End, DetectedText: r.DetectedText}
	var ev RecognitionEvent
	if len(r.Translations) > 0 {
		_ = json.Unmarshal(r.Translations, &ev.Translations)
	}
	if tr, ok := ev.Translation(target); ok {
		seg.TranslatedText = tr
	} else {
		seg.TranslatedText = PlaceholderNoTranslation
	}
	return seg
}
