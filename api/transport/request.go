package transport

type CredentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type GoogleCodeRequest struct {
	Code string `json:"code"`
}

type TaskCreateRequest struct {
	Text string `json:"text"`
}

type CalendarLinkRequest struct {
	DateTime string `json:"datetime"`
	TimeZone string `json:"time_zone"`
}
