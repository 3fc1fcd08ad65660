package redisstore

// Every key carries the {checkin} hash tag so the multi-key Lua scripts
// touch a single slot on Redis Cluster. The whole dataset lives on one shard.
const keyPrefix = "{checkin}:"

const (
	eventsKey   = keyPrefix + "events"
	ticketsKey  = keyPrefix + "tickets"
	scanLogsKey = keyPrefix + "scanlogs"
)

func eventKey(id string) string         { return keyPrefix + "event:" + id }
func eventTicketsKey(id string) string  { return keyPrefix + "event:" + id + ":tickets" }
func eventCountsKey(id string) string   { return keyPrefix + "event:" + id + ":counts" }
func eventScanLogsKey(id string) string { return keyPrefix + "event:" + id + ":scanlogs" }

func ticketKey(id string) string         { return keyPrefix + "ticket:" + id }
func secretKey(secret string) string     { return keyPrefix + "ticket:secret:" + secret }
func ticketScanLogsKey(id string) string { return keyPrefix + "ticket:" + id + ":scanlogs" }
