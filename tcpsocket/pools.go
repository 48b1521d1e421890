package tcpsocket

import "fmt"

var timerPool = &TimerPool{m: newPoolMetrics()}
var messagePool = &MessagePool{m: newPoolMetrics()}

// StartPoolMetrics starts folding the pool counters once per DefaultTickerDuration.
func StartPoolMetrics() {
	timerPool.m.start()
	messagePool.m.start()
}

// ReleasePoolMetrics stops the goroutines started by StartPoolMetrics.
func ReleasePoolMetrics() {
	timerPool.m.release()
	messagePool.m.release()
}

func JsonStringPoolMetrics() string {
	return fmt.Sprintf("{\"timerPool\": \"%s\", \"messagePool\": \"%s\"}",
		timerPool.m.metricsString(),
		messagePool.m.metricsString(),
	)
}
