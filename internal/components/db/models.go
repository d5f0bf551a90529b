package db

type Section struct {
	ID            int64
	CompositeID   string
	CourseID      string
	SectionID     string
	Instructor    string
	TotalSeats    int64
	OpenSeats     int64
	WaitlistCount int64
	ClassTimes    string
	LastUpdated   int64
	Removed       bool
}

type Subscription struct {
	Email    string
	CourseID string
	Position int64
}
