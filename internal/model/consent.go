package model

import "time"

const CookieConsentVersion = "1.0"

type ConsentPreferences struct {
	Necessary bool `json:"necessary"`
	Analytics bool `json:"analytics"`
	Marketing bool `json:"marketing"`
}

type CookieConsent struct {
	Preferences ConsentPreferences `json:"preferences"`
	Timestamp   time.Time          `json:"timestamp"`
	Version     string             `json:"version"`
}
