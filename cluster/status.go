package cluster

import (
	"fmt"

	"github.com/tidwall/gjson"
)

const mebibyte = 1024 * 1024

// ParseStatus reads the remote capacity of opts from a cluster metrics document, as served by
// a YARN resource manager's /ws/v1/cluster/metrics endpoint:
//
//   {"clusterMetrics": {"activeNodes": 4, "totalVirtualCores": 64, "totalMB": 262144}}
//
// The memory of a single worker is the total memory divided among all worker slots.
func ParseStatus(data []byte, opts *Options) error {
	if !gjson.ValidBytes(data) {
		return fmt.Errorf("cluster status is not valid JSON")
	}
	metrics := gjson.GetBytes(data, "clusterMetrics")
	if !metrics.Exists() {
		return fmt.Errorf("cluster status has no clusterMetrics")
	}
	nodes := metrics.Get("activeNodes")
	slots := metrics.Get("totalVirtualCores")
	if !nodes.Exists() || !slots.Exists() {
		return fmt.Errorf("cluster status must contain activeNodes and totalVirtualCores")
	}
	if nodes.Int() < 0 || slots.Int() < 0 {
		return fmt.Errorf("cluster status contains negative capacity: %s", metrics.Raw)
	}
	opts.RemoteNodes = int(nodes.Int())
	opts.RemoteSlots = int(slots.Int())
	if total := metrics.Get("totalMB"); total.Exists() && opts.RemoteSlots > 0 {
		opts.RemoteMemory = total.Float() * mebibyte / float64(opts.RemoteSlots)
	}
	return nil
}
