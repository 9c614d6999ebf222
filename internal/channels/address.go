// Package channels implements the group fan-out that WebSocket consumers subscribe to.
package channels

import (
	"fmt"
	"strings"
)

// Kind identifies which family of group an Address belongs to.
type Kind int

const (
	KindUser Kind = iota + 1
	KindProject
	KindMeeting
	KindSystem
)

func (k Kind) String() string {
	switch k {
	case KindUser:
		return "user"
	case KindProject:
		return "project"
	case KindMeeting:
		return "meeting"
	case KindSystem:
		return "system"
	}
	return "unknown"
}

// Address names one broadcast group. The zero value is invalid.
type Address struct {
	kind Kind
	id   string
}

func PerUser(userID string) Address       { return Address{kind: KindUser, id: userID} }
func PerProject(projectID string) Address { return Address{kind: KindProject, id: projectID} }
func PerMeeting(meetingID string) Address { return Address{kind: KindMeeting, id: meetingID} }
func System() Address                     { return Address{kind: KindSystem} }

func (a Address) Kind() Kind { return a.kind }
func (a Address) ID() string { return a.id }

func (a Address) Valid() bool {
	if a.kind == KindSystem {
		return true
	}
	return a.kind >= KindUser && a.kind <= KindMeeting && a.id != ""
}

const (
	userPrefix    = "user_notifications_"
	projectPrefix = "project_"
	meetingPrefix = "meeting_chat_"
	systemGroup   = "system_notifications"
)

// Group returns the wire name of the group.
func (a Address) Group() string {
	switch a.kind {
	case KindUser:
		return userPrefix + a.id
	case KindProject:
		return projectPrefix + a.id
	case KindMeeting:
		return meetingPrefix + a.id
	case KindSystem:
		return systemGroup
	}
	return ""
}

func (a Address) String() string { return a.Group() }

// ParseGroup is the inverse of Address.Group.
func ParseGroup(group string) (Address, error) {
	var a Address
	switch {
	case group == systemGroup:
		return System(), nil
	case strings.HasPrefix(group, userPrefix):
		a = PerUser(strings.TrimPrefix(group, userPrefix))
	case strings.HasPrefix(group, meetingPrefix):
		a = PerMeeting(strings.TrimPrefix(group, meetingPrefix))
	case strings.HasPrefix(group, projectPrefix):
		a = PerProject(strings.TrimPrefix(group, projectPrefix))
	}
	if !a.Valid() {
		return Address{}, fmt.Errorf("channels: unknown group %q", group)
	}
	return a, nil
}
