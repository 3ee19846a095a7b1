package i18n

// Localized strings for everything the backend itself says to users: the
// default chat title, the model system instruction, and the fallback reply
// persisted when the model call fails. Unknown language codes fall back to
// English; already-persisted messages are never rewritten when a user
// changes their preference.

const DefaultLanguage = "en"

type messageSet struct {
  defaultChatTitle  string
  systemInstruction string
  modelFailureReply string
}

var messages = map[string]messageSet{
  "en": {
    defaultChatTitle:  "New chat",
    systemInstruction: "You are a helpful assistant. Answer concisely and in the user's language.",
    modelFailureReply: "Sorry, I could not reach the model right now. Please try again in a moment.",
  },
  "es": {
    defaultChatTitle:  "Nuevo chat",
    systemInstruction: "Eres un asistente útil. Responde de forma concisa y en el idioma del usuario.",
    modelFailureReply: "Lo siento, no pude contactar con el modelo en este momento. Inténtalo de nuevo en un momento.",
  },
  "ru": {
    defaultChatTitle:  "Новый чат",
    systemInstruction: "Ты полезный ассистент. Отвечай кратко и на языке пользователя.",
    modelFailureReply: "Извините, сейчас не удалось связаться с моделью. Пожалуйста, попробуйте ещё раз чуть позже.",
  },
}

func forLanguage(lang string) messageSet {
  if set, ok := messages[lang]; ok {
    return set
  }
  return messages[DefaultLanguage]
}

// Supported reports whether lang has its own string table.
func Supported(lang string) bool {
  _, ok := messages[lang]
  return ok
}

func DefaultChatTitle(lang string) string {
  return forLanguage(lang).defaultChatTitle
}

func SystemInstruction(lang string) string {
  return forLanguage(lang).systemInstruction
}

func ModelFailureReply(lang string) string {
  return forLanguage(lang).modelFailureReply
}
