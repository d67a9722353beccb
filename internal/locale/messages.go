package locale

import (
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var messages = map[string]map[string]string{
	EN: {
		"auth.invalid_credentials": "Invalid email or password.",
		"auth.network":             "Could not reach the sign-in service. Please try again.",
		"auth.invalid_link":        "This link is invalid or has expired.",
		"auth.unknown":             "Sign-in failed. Please try again.",
		"auth.rate_limited":        "Too many attempts. Please wait a few minutes.",
		"contact.sent":             "Thanks! We will get back to you shortly.",
		"contact.not_configured":   "The contact form is currently unavailable. Please email us instead.",
		"contact.timeout":          "The request took too long. Please try again.",
		"contact.network":          "Network error. Please check your connection and try again.",
		"contact.server":           "Something went wrong on our side. Please try again later.",
		"contact.invalid":          "Please check the highlighted fields.",
		"load.failed":              "Could not load this page. Please retry.",
		"not_found":                "Not found.",
		"preview.unavailable":      "Preview is not available right now.",
		"chat.consent_required":    "Please accept the AI disclaimer to use the assistant.",
		"password.updated":         "Your password has been updated.",
		"recovery.sent":            "If an account exists for this address, we sent a reset link.",
	},
	DE: {
		"auth.invalid_credentials": "E-Mail oder Passwort ist falsch.",
		"auth.network":             "Der Anmeldedienst ist nicht erreichbar. Bitte erneut versuchen.",
		"auth.invalid_link":        "Dieser Link ist ungültig oder abgelaufen.",
		"auth.unknown":             "Anmeldung fehlgeschlagen. Bitte erneut versuchen.",
		"auth.rate_limited":        "Zu viele Versuche. Bitte warte ein paar Minuten.",
		"contact.sent":             "Danke! Wir melden uns in Kürze.",
		"contact.not_configured":   "Das Kontaktformular ist derzeit nicht verfügbar. Bitte schreib uns eine E-Mail.",
		"contact.timeout":          "Die Anfrage hat zu lange gedauert. Bitte erneut versuchen.",
		"contact.network":          "Netzwerkfehler. Bitte Verbindung prüfen und erneut versuchen.",
		"contact.server":           "Bei uns ist etwas schiefgelaufen. Bitte später erneut versuchen.",
		"contact.invalid":          "Bitte prüfe die markierten Felder.",
		"load.failed":              "Die Seite konnte nicht geladen werden. Bitte erneut versuchen.",
		"not_found":                "Nicht gefunden.",
		"preview.unavailable":      "Die Vorschau ist gerade nicht verfügbar.",
		"chat.consent_required":    "Bitte akzeptiere den KI-Hinweis, um den Assistenten zu nutzen.",
		"password.updated":         "Dein Passwort wurde aktualisiert.",
		"recovery.sent":            "Falls ein Konto zu dieser Adresse existiert, haben wir einen Link gesendet.",
	},
}

// Message returns the localized text for key, falling back to English and
// then to the key itself.
func Message(lang, key string) string {
	if m, ok := messages[lang][key]; ok {
		return m
	}
	if m, ok := messages[EN][key]; ok {
		return m
	}
	return key
}

// Title formats a slug-like string as a title using the language's casing rules.
func Title(lang, s string) string {
	tag := language.English
	if lang == DE {
		tag = language.German
	}
	return cases.Title(tag).String(s)
}
