package dto

type ConsentURLResponse struct {
	URL string `json:"url"`
}
