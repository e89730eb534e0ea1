package chat

import (
	"fmt"

	"github.com/roadwatch/roadwatch/internal/models"
)

// Supported conversation languages.
const (
	LangEnglish = "en"
	LangMarathi = "mr"
)

// Message catalog keys.
const (
	msgWelcome             = "welcome"
	msgAskName             = "ask_name"
	msgMenu                = "menu"
	msgMenuNoName          = "menu_no_name"
	msgCaptureInstructions = "capture_instructions"
	msgSuggestionPrompt    = "suggestion_prompt"
	msgAskLocation         = "ask_location"
	msgOutsideJurisdiction = "outside_jurisdiction"
	msgUnavailable         = "unavailable"
	msgInvalidLocation     = "invalid_location"
	msgConfirmation        = "confirmation"
	msgSubmitFailed        = "submit_failed"
	msgJoinLink            = "join_link"
)

// The menu body is shared between the personalized and anonymous greetings.
const (
	menuBodyEN = "What would you like to report?\n" +
		"1. Traffic Violation\n2. Traffic Congestion\n3. Accident\n" +
		"4. Road Damage\n5. Illegal Parking\n6. Traffic Signal Issue\n" +
		"7. Suggestion\n8. Join Our Team\n\n" +
		"Reply with a number. Send \"menu\" anytime to see this again."
	menuBodyMR = "आपण काय नोंदवू इच्छिता?\n" +
		"1. वाहतूक नियमभंग\n2. वाहतूक कोंडी\n3. अपघात\n" +
		"4. रस्त्याचे नुकसान\n5. बेकायदेशीर पार्किंग\n6. सिग्नल समस्या\n" +
		"7. सूचना\n8. आमच्या टीममध्ये सामील व्हा\n\n" +
		"क्रमांक पाठवा. हा मेनू पुन्हा पाहण्यासाठी \"menu\" पाठवा."
)

// The welcome prompt is deliberately bilingual: it is shown before the user
// has picked a language.
var catalog = map[string]map[string]string{
	LangEnglish: {
		msgWelcome: "Welcome to RoadWatch / रोडवॉच मध्ये आपले स्वागत आहे\n\n" +
			"Please select a language / कृपया भाषा निवडा:\n1. English\n2. मराठी",
		msgAskName:    "Thank you! Please tell us your name.",
		msgMenu:       "Hi %s! " + menuBodyEN,
		msgMenuNoName: "Hi there! " + menuBodyEN,
		msgCaptureInstructions: "Reporting: %s.\n" +
			"Please send a photo and a short description of the issue, " +
			"and share your live location so we can route it to the right division.",
		msgSuggestionPrompt: "We're listening! Please type your suggestion, " +
			"and share the location it concerns.",
		msgAskLocation: "Got it. Now please share the location of the issue " +
			"(use the attach > location option).",
		msgOutsideJurisdiction: "Sorry, that location is outside our service area, " +
			"so we can't register this report. Reply \"menu\" to start over.",
		msgUnavailable: "We couldn't process your report right now. " +
			"Please try sending the location again in a moment.",
		msgInvalidLocation: "That location didn't come through correctly. " +
			"Please share it again using the attach > location option.",
		msgConfirmation: "✅ Your %s report has been registered with the %s division " +
			"(ref %s). The officer on duty has been notified. Thank you for making our roads safer!",
		msgSubmitFailed: "We received your report but could not notify the division right now, " +
			"so it was not registered. Please try again later.",
		msgJoinLink: "Great! Please fill out our team application form: %s",
	},
	LangMarathi: {
		msgAskName:    "धन्यवाद! कृपया आपले नाव सांगा.",
		msgMenu:       "नमस्कार %s! " + menuBodyMR,
		msgMenuNoName: "नमस्कार! " + menuBodyMR,
		msgCaptureInstructions: "तक्रार: %s.\n" +
			"कृपया समस्येचा फोटो व थोडक्यात वर्णन पाठवा आणि आपले लोकेशन शेअर करा.",
		msgSuggestionPrompt:    "आम्ही ऐकत आहोत! कृपया आपली सूचना लिहा आणि संबंधित ठिकाणाचे लोकेशन शेअर करा.",
		msgAskLocation:         "समजले. आता कृपया समस्येचे लोकेशन शेअर करा.",
		msgOutsideJurisdiction: "क्षमस्व, हे ठिकाण आमच्या कार्यक्षेत्राबाहेर आहे, त्यामुळे ही तक्रार नोंदवता आली नाही. पुन्हा सुरू करण्यासाठी \"menu\" पाठवा.",
		msgUnavailable:         "सध्या आपली तक्रार नोंदवता आली नाही. कृपया थोड्या वेळाने लोकेशन पुन्हा पाठवा.",
		msgInvalidLocation:     "लोकेशन नीट मिळाले नाही. कृपया पुन्हा शेअर करा.",
		msgConfirmation:        "✅ आपली %s तक्रार %s विभागाकडे नोंदवली आहे (संदर्भ %s). कर्तव्यावरील अधिकाऱ्याला कळवले आहे. धन्यवाद!",
		msgSubmitFailed:        "आपली तक्रार मिळाली, परंतु सध्या विभागाला कळवता आले नाही, त्यामुळे ती नोंदवली गेली नाही. कृपया नंतर पुन्हा प्रयत्न करा.",
		msgJoinLink:            "छान! कृपया आमचा अर्ज भरा: %s",
	},
}

// menuFor renders the home menu, dropping the personalized greeting when
// the session has no display name yet (the "menu" keyword is reachable
// before name collection).
func menuFor(sess *models.Session) string {
	if sess.DisplayName == "" {
		return text(sess.Language, msgMenuNoName)
	}
	return text(sess.Language, msgMenu, sess.DisplayName)
}

// text returns the catalog message for the language, formatted with args.
// Missing translations fall back to English so a partial catalog can never
// leave the user without a reply.
func text(lang, key string, args ...interface{}) string {
	msg, ok := catalog[lang][key]
	if !ok {
		msg = catalog[LangEnglish][key]
	}
	if len(args) == 0 {
		return msg
	}
	return fmt.Sprintf(msg, args...)
}

// reportTypeLabel returns the localized display name for a report type.
func reportTypeLabel(lang, reportType string) string {
	if lang != LangMarathi {
		return reportType
	}
	labels := map[string]string{
		"Traffic Violation":    "वाहतूक नियमभंग",
		"Traffic Congestion":   "वाहतूक कोंडी",
		"Accident":             "अपघात",
		"Road Damage":          "रस्त्याचे नुकसान",
		"Illegal Parking":      "बेकायदेशीर पार्किंग",
		"Traffic Signal Issue": "सिग्नल समस्या",
		"Suggestion":           "सूचना",
	}
	if l, ok := labels[reportType]; ok {
		return l
	}
	return reportType
}
