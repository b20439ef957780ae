package ros

import "expvar"

var (
	metricPublishersActive  = expvar.NewInt("ros_publishers_active")
	metricSubscribersActive = expvar.NewInt("ros_subscribers_active")
	metricServersActive     = expvar.NewInt("ros_service_servers_active")
	metricMessagesPublished = expvar.NewInt("ros_messages_published")
	metricMessagesReceived  = expvar.NewInt("ros_messages_received")
	metricServiceCalls      = expvar.NewInt("ros_service_calls")
	metricServiceFailures   = expvar.NewInt("ros_service_call_failures")
)
