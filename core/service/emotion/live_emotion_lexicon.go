// Package emotion detects the sender's affect from a chat message.
package emotion

import "live_server/core/domain"

// Keywords fold like the intent catalog, so words that collide once accents
// are stripped ("tức"/"tuc", "điên"/"điện", "mệt"/"mét") appear only in
// phrases.

// Emotion is one lexicon row. Higher weight wins when several match, so
// negative affect, which earns a priority bonus, is never masked by a
// smiley in the same message.
type Emotion struct {
	ID       domain.EmotionID
	Weight   float64
	Keywords []string
}

const DefaultEmotion = domain.EmotionNeutral

// DefaultLexicon returns the built-in emotion table.
func DefaultLexicon() []Emotion {
	return []Emotion{
		{
			ID: domain.EmotionAngry, Weight: 100,
			Keywords: []string{
				"lừa đảo", "bực quá", "bực mình", "tức quá", "tức ghê", "tức điên", "phát điên",
				"vô lý", "láo toét", "nói láo", "quá đáng", "scam", "angry",
				"😡", "🤬", "😠",
			},
		},
		{
			ID: domain.EmotionFrustrated, Weight: 90,
			Keywords: []string{
				"chờ mãi", "đợi lâu", "lâu quá", "mãi chưa", "sao chưa", "hỏi mãi", "không ai trả lời",
				"chán quá", "chán ghê", "mệt quá", "mệt mỏi", "ugh", "😤", "😩", "😒",
			},
		},
		{
			ID: domain.EmotionSad, Weight: 80,
			Keywords: []string{
				"buồn quá", "buồn ghê", "tiếc quá", "đáng tiếc", "huhu", "khóc", "hết hàng rồi", "sad",
				"😢", "😭", "☹", "😞",
			},
		},
		{
			ID: domain.EmotionSurprised, Weight: 60,
			Keywords: []string{
				"trời ơi", "wow", "bất ngờ", "thật à", "thật sao", "không thể tin", "omg", "ủa",
				"😮", "😱", "😲",
			},
		},
		{
			ID: domain.EmotionExcited, Weight: 55,
			Keywords: []string{
				"!", "hóng quá", "đang hóng", "mê quá", "quá trời", "chốt liền", "nhanh lên", "hype",
				"🔥", "🤩", "🎉",
			},
		},
		{
			ID: domain.EmotionHappy, Weight: 50,
			Keywords: []string{
				"vui", "thích", "yêu quá", "yêu shop", "hihi", "haha", "hehe", "tuyệt", "love",
				"😊", "😄", "😁", "❤", "😍", "🥰",
			},
		},
		{
			ID: domain.EmotionCurious, Weight: 40,
			Keywords: []string{
				"?", "cho hỏi", "hỏi chút", "tò mò", "không biết", "thế nào", "sao vậy", "🤔",
			},
		},
	}
}
