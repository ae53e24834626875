package redis

import "fmt"

const ns = "smashit:v1"

func KeySpaceSummary(spaceID int64) string {
	return fmt.Sprintf("%s:space:%d:summary", ns, spaceID)
}

func KeySpaceAvailability(spaceID int64, date string) string {
	return fmt.Sprintf("%s:space:%d:availability:%s", ns, spaceID, date)
}

func KeySpaceAvailabilityPrefix(spaceID int64) string {
	return fmt.Sprintf("%s:space:%d:availability:", ns, spaceID)
}

func KeyRateLimit(scope, id string) string {
	return fmt.Sprintf("%s:rl:%s:%s", ns, scope, id)
}

func ChannelOrgEvents(orgID int64) string {
	return fmt.Sprintf("%s:org:%d:events", ns, orgID)
}
