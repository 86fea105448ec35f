// Package domain holds the user types shared by the users service and its callers
package domain

import "time"

// Mailing is how much broadcast mail a user accepts
type Mailing int

// Mailing levels; a broadcast at level L reaches users with Mailings >= L
const (
	MailingOff       Mailing = 0
	MailingImportant Mailing = 1
	MailingAll       Mailing = 2
)

// Valid reports whether m is a known level
func (m Mailing) Valid() bool { return m >= MailingOff && m <= MailingAll }

// Permission is an admin's role
type Permission int

// Permissions
const (
	PermNone      Permission = 0
	PermAdmin     Permission = 1
	PermModerator Permission = 2
	PermTeacher   Permission = 3
)

// RatingMinUsers is how many users must exist before the rating is shown
const RatingMinUsers = 10

// User is a registered chat user
type User struct {
	ID         int64
	Username   string
	FirstName  string
	LastName   string
	Lang       string
	Mailings   Mailing
	Referrals  int
	ReferrerID int64
	CreatedOn  time.Time
}

// DisplayName picks the best name to show for u
func (u User) DisplayName() string {
	switch {
	case u.Username != "":
		return "@" + u.Username
	case u.FirstName != "" && u.LastName != "":
		return u.FirstName + " " + u.LastName
	case u.FirstName != "":
		return u.FirstName
	}
	return "#"
}

// RegisterInput carries what the first /start tells us about a user
type RegisterInput struct {
	ID         int64
	Username   string
	FirstName  string
	LastName   string
	Lang       string
	ReferrerID int64
}

// Profile is the user page
type Profile struct {
	User  User
	Words int
}

// RatingRow is one line of the word-count leaderboard
type RatingRow struct {
	Place  int
	UserID int64
	Name   string
	Words  int
}
