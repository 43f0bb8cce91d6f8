package domain

// EmotionID is one of the fixed sender affect categories.
type EmotionID string

const (
	EmotionHappy      EmotionID = "HAPPY"
	EmotionExcited    EmotionID = "EXCITED"
	EmotionSad        EmotionID = "SAD"
	EmotionAngry      EmotionID = "ANGRY"
	EmotionNeutral    EmotionID = "NEUTRAL"
	EmotionCurious    EmotionID = "CURIOUS"
	EmotionFrustrated EmotionID = "FRUSTRATED"
	EmotionSurprised  EmotionID = "SURPRISED"
)

// IsNegative reports whether the emotion warrants extra attention.
func (e EmotionID) IsNegative() bool {
	return e == EmotionAngry || e == EmotionFrustrated || e == EmotionSad
}

// EmotionResult is the Emotion Detector output for one message.
type EmotionResult struct {
	EmotionID  EmotionID `json:"emotion_id"`
	Confidence float64   `json:"confidence"`
}
