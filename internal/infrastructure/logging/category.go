package logging

type Category string
type SubCategory string
type ExtraKey string

const (
	General         Category = "General"
	IO              Category = "IO"
	Internal        Category = "Internal"
	Redis           Category = "Redis"
	RabbitMQ        Category = "RabbitMQ"
	MongoDB         Category = "MongoDB"
	Validation      Category = "Validation"
	RequestResponse Category = "RequestResponse"
	Prometheus      Category = "Prometheus"
	WebSocket       Category = "WebSocket"
	Room            Category = "Room"
	Events          Category = "Events"
)

const (
	// General
	Startup         SubCategory = "Startup"
	Shutdown        SubCategory = "Shutdown"
	RateLimiting    SubCategory = "RateLimiting"
	ExternalService SubCategory = "ExternalService"

	// WebSocket
	Connect    SubCategory = "Connect"
	Disconnect SubCategory = "Disconnect"
	Read       SubCategory = "Read"
	Write      SubCategory = "Write"

	// Room
	Join           SubCategory = "Join"
	Leave          SubCategory = "Leave"
	HostFailover   SubCategory = "HostFailover"
	UrlChange      SubCategory = "UrlChange"
	SettingsChange SubCategory = "SettingsChange"
	Sync           SubCategory = "Sync"
	Chat           SubCategory = "Chat"
	Rejected       SubCategory = "Rejected"

	// Events
	Publish SubCategory = "Publish"
	Audit   SubCategory = "Audit"
)

const (
	AppName      ExtraKey = "AppName"
	LoggerName   ExtraKey = "Logger"
	ClientIp     ExtraKey = "ClientIp"
	HostIp       ExtraKey = "HostIp"
	Method       ExtraKey = "Method"
	StatusCode   ExtraKey = "StatusCode"
	BodySize     ExtraKey = "BodySize"
	Path         ExtraKey = "Path"
	Latency      ExtraKey = "Latency"
	RequestBody  ExtraKey = "RequestBody"
	ResponseBody ExtraKey = "ResponseBody"
	ErrorMessage ExtraKey = "ErrorMessage"
	ConnID       ExtraKey = "ConnId"
	RoomID       ExtraKey = "RoomId"
	Event        ExtraKey = "Event"
	HostID       ExtraKey = "HostId"
	MemberCount  ExtraKey = "MemberCount"
)
