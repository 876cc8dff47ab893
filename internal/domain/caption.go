package domain

const (
	// NoTextDetected and NoTranslationAvailable make up the caption shown when
	// nothing is active at the playback position.
	NoTextDetected         = "No text detected."
	NoTranslationAvailable = "No translation available."

	// Placeholders stored in a segment when a recognition event carried no payload.
	PlaceholderNoText        = "(No text detected)"
	PlaceholderNoTranslation = "(No translation)"
)

// CaptionSegment is a time interval, in seconds from playback origin, paired with
// the recognized text and its translation.
type CaptionSegment struct {
	Start          float64 `json:"start"`
	End            float64 `json:"end"`
	DetectedText   string  `json:"detected_text"`
	TranslatedText string  `json:"translated_text"`
}

// Contains reports whether t falls inside the segment, inclusive at both ends.
func (s CaptionSegment) Contains(t float64) bool {
	return s.Start <= t && t <= s.End
}

func (s CaptionSegment) Caption() Caption {
	return Caption{DetectedText: s.DetectedText, TranslatedText: s.TranslatedText}
}

type Caption struct {
	DetectedText   string `json:"detected_text"`
	TranslatedText string `json:"translated_text"`
}

var NoCaption = Caption{DetectedText: NoTextDetected, TranslatedText: NoTranslationAvailable}
