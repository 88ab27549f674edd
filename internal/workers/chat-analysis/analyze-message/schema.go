package analyzemessage

import "stream-monetization-workers/internal/common/validation"

const systemPrompt = `You are a sales-conversation analyst for live-stream commerce.
Analyze one viewer chat message and respond with a single JSON object:
{
  "sentiment_score": number in [-1,1],
  "purchase_intent_score": number in [0,1],
  "urgency_score": number in [0,1],
  "engagement_score": number in [0,1],
  "detected_entities": [string],
  "conversation_topics": [string],
  "objection_signals": [string],
  "buying_signals": [string],
  "ai_analysis": {
    "summary": string,
    "key_insights": [string],
    "emotional_state": "excited" | "interested" | "neutral" | "skeptical" | "frustrated",
    "conversion_probability": number in [0,1],
    "recommended_tone": "enthusiastic" | "informative" | "reassuring" | "urgent" | "casual"
  }
}
Respond with JSON only.`

var analysisSchema = validation.MustCompile(`{
  "type": "object",
  "required": ["sentiment_score", "purchase_intent_score", "urgency_score", "engagement_score"],
  "properties": {
    "sentiment_score": {"type": "number"},
    "purchase_intent_score": {"type": "number"},
    "urgency_score": {"type": "number"},
    "engagement_score": {"type": "number"},
    "detected_entities": {"type": "array", "items": {"type": "string"}},
    "conversation_topics": {"type": "array", "items": {"type": "string"}},
    "objection_signals": {"type": "array", "items": {"type": "string"}},
    "buying_signals": {"type": "array", "items": {"type": "string"}},
    "ai_analysis": {
      "type": "object",
      "properties": {
        "summary": {"type": "string"},
        "key_insights": {"type": "array", "items": {"type": "string"}},
        "emotional_state": {"type": "string"},
        "conversion_probability": {"type": "number"},
        "recommended_tone": {"type": "string"}
      }
    }
  }
}`)
