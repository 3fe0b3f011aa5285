// Command mirror keeps a replica directory tree in exact correspondence with a source directory tree.
//
// Every pass copies each source file over its replica counterpart,
// deletes replica files and directories that have no same-named source counterpart,
// and creates missing directories, top-down.
// Nothing is compared by content or timestamp; every file is rewritten on every pass.
//
// To mirror SOURCE into REPLICA every 5 seconds, logging to LOGDIR:
//
//	mirror run SOURCE REPLICA 5000 LOGDIR
//
// or equivalently:
//
//	mirror run -source SOURCE -replica REPLICA -interval 5000 -logdir LOGDIR
//
// All three directories must already exist.
// The log file in LOGDIR is named Log-DD.MM.YYYY for the day the process started.
//
// By default a subtree that fails is reported and retried on the next pass
// while the rest of the tree carries on.
// With -on-error stop, a pass ends at its first failure.
// With -exit-on-error, the process exits after the first failed pass.
// With -retry-failed=false, failed subtrees are left alone on later passes
// until the process receives SIGHUP.
//
// Other options:
//
//	-config FILE        JSON file supplying any of the above (flags take precedence)
//	-parallel N         reconcile up to N sibling directories at once
//	-watch              start an extra pass whenever the source tree changes
//	-metrics-addr ADDR  serve Prometheus metrics at http://ADDR/metrics
//	-history FILE       record every pass in the history store described by FILE,
//	                    e.g. {"type": "sqlite3", "conn": "/var/lib/mirror/history.db"}
//	-lockfile FILE      file to flock during each pass,
//	                    by default .REPLICA.mirror-lock beside the replica
//
// A single pass can be run with:
//
//	mirror once SOURCE REPLICA 0 LOGDIR
//
// and recorded passes listed with:
//
//	mirror history -history FILE [-since TIME]
//
// The process exits on SIGINT or SIGTERM after the pass in progress ends.
package main
