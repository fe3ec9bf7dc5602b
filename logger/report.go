package logger

import (
	"context"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
	gnet "github.com/shirou/gopsutil/v3/net"

	"github.com/aws/aws-sdk-go-v2/aws"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
)

type channelStat struct {
	messages int64
	bytes    int64
}

var (
	errorsFeed      int64
	errorsValuation int64
	warnsFeed       int64
	warnsValuation  int64
	tickReads       int64
	decodeDrops     int64
	reconnects      int64
	balanceRefresh  int64
	snapshotPushes  int64
	channels        sync.Map // map[string]*channelStat
)

func recordWarn(component string) {
	if strings.Contains(component, "feed") {
		atomic.AddInt64(&warnsFeed, 1)
	} else if strings.Contains(component, "valuation") {
		atomic.AddInt64(&warnsValuation, 1)
	}
}

func recordError(component string) {
	if strings.Contains(component, "feed") {
		atomic.AddInt64(&errorsFeed, 1)
	} else if strings.Contains(component, "valuation") {
		atomic.AddInt64(&errorsValuation, 1)
	}
}

// IncrementTickRead records a decoded ticker frame of the given size.
func IncrementTickRead(size int) {
	atomic.AddInt64(&tickReads, 1)
	recordChannel("feed_ws", size)
}

// IncrementDecodeDrop records a frame that failed to decode and was dropped.
func IncrementDecodeDrop() {
	atomic.AddInt64(&decodeDrops, 1)
}

// IncrementReconnect records a feed reconnect attempt.
func IncrementReconnect() {
	atomic.AddInt64(&reconnects, 1)
}

// IncrementBalanceRefresh records a completed account balance refresh.
func IncrementBalanceRefresh() {
	atomic.AddInt64(&balanceRefresh, 1)
}

// IncrementSnapshotPush records a portfolio snapshot handed to consumers.
func IncrementSnapshotPush(size int) {
	atomic.AddInt64(&snapshotPushes, 1)
	recordChannel("snapshot_push", size)
}

func RecordChannelMessage(name string, size int) {
	recordChannel(name, size)
}

func recordChannel(name string, size int) {
	v, _ := channels.LoadOrStore(name, &channelStat{})
	cs := v.(*channelStat)
	atomic.AddInt64(&cs.messages, 1)
	atomic.AddInt64(&cs.bytes, int64(size))
}

// StartReport begins periodic logging of system and feed statistics.
func StartReport(ctx context.Context, log *Log, interval time.Duration) {
	ticker := time.NewTicker(interval)
	go func() {
		for {
			select {
			case <-ctx.Done():
				ticker.Stop()
				return
			case <-ticker.C:
				logReport(ctx, log)
			}
		}
	}()
}

func logReport(ctx context.Context, log *Log) {
	cpuPercent, _ := cpu.Percent(0, false)
	memStats, _ := mem.VirtualMemory()
	netStats, _ := gnet.IOCounters(false)
	channelData := map[string]map[string]int64{}
	channels.Range(func(k, v any) bool {
		name := k.(string)
		cs := v.(*channelStat)
		channelData[name] = map[string]int64{
			"messages": atomic.LoadInt64(&cs.messages),
			"bytes":    atomic.LoadInt64(&cs.bytes),
		}
		return true
	})

	cpuPct := 0.0
	if len(cpuPercent) > 0 {
		cpuPct = cpuPercent[0]
	}

	bytesSent := uint64(0)
	bytesRecv := uint64(0)
	if len(netStats) > 0 {
		bytesSent = netStats[0].BytesSent
		bytesRecv = netStats[0].BytesRecv
	}

	fields := Fields{
		"errors_feed":       atomic.LoadInt64(&errorsFeed),
		"errors_valuation":  atomic.LoadInt64(&errorsValuation),
		"warns_feed":        atomic.LoadInt64(&warnsFeed),
		"warns_valuation":   atomic.LoadInt64(&warnsValuation),
		"tick_reads":        atomic.LoadInt64(&tickReads),
		"decode_drops":      atomic.LoadInt64(&decodeDrops),
		"reconnects":        atomic.LoadInt64(&reconnects),
		"balance_refreshes": atomic.LoadInt64(&balanceRefresh),
		"snapshot_pushes":   atomic.LoadInt64(&snapshotPushes),
		"goroutines":        runtime.NumGoroutine(),
		"cpu_percent":       cpuPct,
		"memory_mb":         int64(memStats.Used) / 1024 / 1024,
		"channels":          channelData,
		"net_bytes_sent":    int64(bytesSent),
		"net_bytes_recv":    int64(bytesRecv),
	}

	log.WithComponent("report").WithFields(fields).Info("runtime report")

	var data []cwtypes.MetricDatum
	data = append(data,
		cwtypes.MetricDatum{MetricName: aws.String("Coinview-CPUPercent"), Unit: cwtypes.StandardUnitPercent, Value: aws.Float64(cpuPct)},
		cwtypes.MetricDatum{MetricName: aws.String("Coinview-MemoryMB"), Unit: cwtypes.StandardUnitMegabytes, Value: aws.Float64(float64(memStats.Used) / 1024 / 1024)},
		cwtypes.MetricDatum{MetricName: aws.String("Coinview-ErrorsFeed"), Unit: cwtypes.StandardUnitCount, Value: aws.Float64(float64(fields["errors_feed"].(int64)))},
		cwtypes.MetricDatum{MetricName: aws.String("Coinview-ErrorsValuation"), Unit: cwtypes.StandardUnitCount, Value: aws.Float64(float64(fields["errors_valuation"].(int64)))},
		cwtypes.MetricDatum{MetricName: aws.String("Coinview-WarnsFeed"), Unit: cwtypes.StandardUnitCount, Value: aws.Float64(float64(fields["warns_feed"].(int64)))},
		cwtypes.MetricDatum{MetricName: aws.String("Coinview-WarnsValuation"), Unit: cwtypes.StandardUnitCount, Value: aws.Float64(float64(fields["warns_valuation"].(int64)))},
		cwtypes.MetricDatum{MetricName: aws.String("Coinview-TickReads"), Unit: cwtypes.StandardUnitCount, Value: aws.Float64(float64(fields["tick_reads"].(int64)))},
		cwtypes.MetricDatum{MetricName: aws.String("Coinview-DecodeDrops"), Unit: cwtypes.StandardUnitCount, Value: aws.Float64(float64(fields["decode_drops"].(int64)))},
		cwtypes.MetricDatum{MetricName: aws.String("Coinview-Reconnects"), Unit: cwtypes.StandardUnitCount, Value: aws.Float64(float64(fields["reconnects"].(int64)))},
		cwtypes.MetricDatum{MetricName: aws.String("Coinview-BalanceRefreshes"), Unit: cwtypes.StandardUnitCount, Value: aws.Float64(float64(fields["balance_refreshes"].(int64)))},
		cwtypes.MetricDatum{MetricName: aws.String("Coinview-SnapshotPushes"), Unit: cwtypes.StandardUnitCount, Value: aws.Float64(float64(fields["snapshot_pushes"].(int64)))},
		cwtypes.MetricDatum{MetricName: aws.String("Coinview-NetBytesSent"), Unit: cwtypes.StandardUnitBytes, Value: aws.Float64(float64(bytesSent))},
		cwtypes.MetricDatum{MetricName: aws.String("Coinview-NetBytesRecv"), Unit: cwtypes.StandardUnitBytes, Value: aws.Float64(float64(bytesRecv))},
	)

	for name, stats := range channelData {
		data = append(data,
			cwtypes.MetricDatum{
				MetricName: aws.String("Coinview-ChannelMessages"),
				Unit:       cwtypes.StandardUnitCount,
				Dimensions: []cwtypes.Dimension{{Name: aws.String("Channel"), Value: aws.String(name)}},
				Value:      aws.Float64(float64(stats["messages"])),
			},
			cwtypes.MetricDatum{
				MetricName: aws.String("Coinview-ChannelBytes"),
				Unit:       cwtypes.StandardUnitBytes,
				Dimensions: []cwtypes.Dimension{{Name: aws.String("Channel"), Value: aws.String(name)}},
				Value:      aws.Float64(float64(stats["bytes"])),
			},
		)
	}

	publishMetrics(ctx, data)
}
