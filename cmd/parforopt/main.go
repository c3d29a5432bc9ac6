// Command parforopt runs the rule-based parfor optimizer over scenario files and prints the
// resulting plans
package main

import (
	"os"

	"k8s.io/klog/v2"
)

func main() {
	defer klog.Flush()
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
