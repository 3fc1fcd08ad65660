package redisstore

// Script results: 1 applied, 0 conflict, -1 missing parent.

// KEYS: event, events index. ARGV: payload, score, id.
const createEventScript = `
if redis.call('SET', KEYS[1], ARGV[1], 'NX') then
	redis.call('ZADD', KEYS[2], ARGV[2], ARGV[3])
	return 1
end
return 0
`

// KEYS: event, ticket, secret index, event tickets, all tickets, event counts.
// ARGV: id, score, status, then ticket hash field/value pairs.
const createTicketScript = `
if redis.call('EXISTS', KEYS[1]) == 0 then
	return -1
end
if redis.call('EXISTS', KEYS[2]) == 1 then
	return 0
end
if redis.call('SETNX', KEYS[3], ARGV[1]) == 0 then
	return 0
end
redis.call('HSET', KEYS[2], unpack(ARGV, 4))
redis.call('ZADD', KEYS[4], ARGV[2], ARGV[1])
redis.call('ZADD', KEYS[5], ARGV[2], ARGV[1])
redis.call('HINCRBY', KEYS[6], ARGV[3], 1)
return 1
`

// KEYS: ticket, event counts, scan logs, event scan logs, ticket scan logs.
// ARGV: expected, next, checked_in_at, scan log payload ("" for none).
// Returns the updated ticket hash on success.
const conditionalUpdateScript = `
local current = redis.call('HGET', KEYS[1], 'status')
if not current then
	return -1
end
if current ~= ARGV[1] then
	return 0
end
redis.call('HSET', KEYS[1], 'status', ARGV[2], 'checked_in_at', ARGV[3])
redis.call('HINCRBY', KEYS[2], ARGV[1], -1)
redis.call('HINCRBY', KEYS[2], ARGV[2], 1)
if ARGV[4] ~= '' then
	redis.call('LPUSH', KEYS[3], ARGV[4])
	redis.call('LPUSH', KEYS[4], ARGV[4])
	redis.call('LPUSH', KEYS[5], ARGV[4])
end
return redis.call('HGETALL', KEYS[1])
`

// KEYS: ticket, event counts. ARGV: next.
const overrideStatusScript = `
local current = redis.call('HGET', KEYS[1], 'status')
if not current then
	return -1
end
redis.call('HSET', KEYS[1], 'status', ARGV[1], 'checked_in_at', '')
if current ~= ARGV[1] then
	redis.call('HINCRBY', KEYS[2], current, -1)
	redis.call('HINCRBY', KEYS[2], ARGV[1], 1)
end
return redis.call('HGETALL', KEYS[1])
`
