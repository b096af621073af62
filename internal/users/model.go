package users

type User struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	PrimaryEmail string   `json:"primary_email"`
	Emails       []string `json:"emails"`
}
