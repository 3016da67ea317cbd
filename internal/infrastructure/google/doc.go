// Package google talks to Google on behalf of signed-in users: the OAuth2
// sign-in/link flow and event management on the user's primary calendar.
package google
