// Package i18n provides the Norwegian (bokmål) message catalog for
// user-facing responses, with English fallback.
package i18n

import "strings"

// Lang identifies a supported response language.
type Lang string

const (
	// LangNorwegian is the default response language
	LangNorwegian Lang = "nb"
	// LangEnglish is the fallback response language
	LangEnglish Lang = "en"
)

// Message IDs used by services and the API layer.
const (
	MsgInvalidInput       = "invalid_input"
	MsgInvalidCredentials = "invalid_credentials"
	MsgEmailTaken         = "email_taken"
	MsgUsernameTaken      = "username_taken"
	MsgNotFound           = "not_found"
	MsgUnauthorized       = "unauthorized"
	MsgPremiumRequired    = "premium_required"
	MsgDemoLimit          = "demo_limit"
	MsgRateLimited        = "rate_limited"
	MsgQuotaExceeded      = "quota_exceeded"
	MsgServiceUnavailable = "service_unavailable"
	MsgInternalError      = "internal_error"
	MsgSymbolUnknown      = "symbol_unknown"
	MsgAlertCreated       = "alert_created"
	MsgAlertTriggered     = "alert_triggered"
	MsgPaymentReceived    = "payment_received"
	MsgPaymentFailed      = "payment_failed"
	MsgSubscriptionEnded  = "subscription_ended"
	MsgAchievementUnlock  = "achievement_unlock"
	MsgWelcome            = "welcome"
)

var catalog = map[string]map[Lang]string{
	MsgInvalidInput: {
		LangNorwegian: "Ugyldig forespørsel. Kontroller feltene og prøv igjen.",
		LangEnglish:   "Invalid request. Check the fields and try again.",
	},
	MsgInvalidCredentials: {
		LangNorwegian: "Feil e-post eller passord.",
		LangEnglish:   "Wrong email or password.",
	},
	MsgEmailTaken: {
		LangNorwegian: "E-postadressen er allerede registrert.",
		LangEnglish:   "The email address is already registered.",
	},
	MsgUsernameTaken: {
		LangNorwegian: "Brukernavnet er allerede i bruk.",
		LangEnglish:   "The username is already taken.",
	},
	MsgNotFound: {
		LangNorwegian: "Fant ikke ressursen du ba om.",
		LangEnglish:   "The requested resource was not found.",
	},
	MsgUnauthorized: {
		LangNorwegian: "Du må være innlogget for å se dette innholdet.",
		LangEnglish:   "You must be logged in to view this content.",
	},
	MsgPremiumRequired: {
		LangNorwegian: "Dette innholdet krever et aktivt abonnement. Oppgrader for full tilgang.",
		LangEnglish:   "This content requires an active subscription. Upgrade for full access.",
	},
	MsgDemoLimit: {
		LangNorwegian: "Demoperioden gir begrenset tilgang. Registrer deg for å se mer.",
		LangEnglish:   "Demo access is limited. Sign up to see more.",
	},
	MsgRateLimited: {
		LangNorwegian: "For mange forespørsler. Vent litt og prøv igjen.",
		LangEnglish:   "Too many requests. Please wait and try again.",
	},
	MsgQuotaExceeded: {
		LangNorwegian: "Dagskvoten er brukt opp. Oppgrader for høyere kvote.",
		LangEnglish:   "The daily quota is exhausted. Upgrade for a higher quota.",
	},
	MsgServiceUnavailable: {
		LangNorwegian: "Tjenesten er midlertidig utilgjengelig. Prøv igjen senere.",
		LangEnglish:   "The service is temporarily unavailable. Try again later.",
	},
	MsgInternalError: {
		LangNorwegian: "Noe gikk galt hos oss. Prøv igjen senere.",
		LangEnglish:   "Something went wrong on our side. Try again later.",
	},
	MsgSymbolUnknown: {
		LangNorwegian: "Ukjent ticker. Kontroller symbolet og prøv igjen.",
		LangEnglish:   "Unknown ticker. Check the symbol and try again.",
	},
	MsgAlertCreated: {
		LangNorwegian: "Kursvarsel opprettet.",
		LangEnglish:   "Price alert created.",
	},
	MsgAlertTriggered: {
		LangNorwegian: "Kursvarsel utløst for %s: kursen er %s %.2f.",
		LangEnglish:   "Price alert triggered for %s: the price is %s %.2f.",
	},
	MsgPaymentReceived: {
		LangNorwegian: "Betaling mottatt. Abonnementet ditt er aktivt.",
		LangEnglish:   "Payment received. Your subscription is active.",
	},
	MsgPaymentFailed: {
		LangNorwegian: "Betalingen feilet. Oppdater betalingsmetoden for å beholde tilgangen.",
		LangEnglish:   "The payment failed. Update your payment method to keep access.",
	},
	MsgSubscriptionEnded: {
		LangNorwegian: "Abonnementet ditt er avsluttet.",
		LangEnglish:   "Your subscription has ended.",
	},
	MsgAchievementUnlock: {
		LangNorwegian: "Gratulerer! Du har låst opp «%s».",
		LangEnglish:   "Congratulations! You unlocked \"%s\".",
	},
	MsgWelcome: {
		LangNorwegian: "Velkommen til Aksjeradar!",
		LangEnglish:   "Welcome to Aksjeradar!",
	},
}

// T returns the message for the given ID in the given language.
// Unknown IDs return the ID itself so missing entries are visible in
// responses instead of silently blank.
func T(lang Lang, id string) string {
	msgs, ok := catalog[id]
	if !ok {
		return id
	}
	if msg, ok := msgs[lang]; ok {
		return msg
	}
	return msgs[LangNorwegian]
}

// FromAcceptLanguage picks the response language from an Accept-Language
// header value. Norwegian is the default; only an explicit English
// preference switches the catalog.
func FromAcceptLanguage(header string) Lang {
	for _, part := range strings.Split(header, ",") {
		tag := strings.TrimSpace(strings.SplitN(part, ";", 2)[0])
		tag = strings.ToLower(tag)
		switch {
		case strings.HasPrefix(tag, "nb"), strings.HasPrefix(tag, "no"), strings.HasPrefix(tag, "nn"):
			return LangNorwegian
		case strings.HasPrefix(tag, "en"):
			return LangEnglish
		}
	}
	return LangNorwegian
}
