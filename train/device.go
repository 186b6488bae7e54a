// Package train 提供单模型的小批量训练器与计算设备租约。
//
// 核心思想：
//   - 训练从聚合器视角严格串行：设备建模为互斥租约，
//     每次训练调用获取租约，所有退出路径（含早停与出错）都释放
//   - 早停回滚最优权重，平台期衰减学习率，最优快照落盘检查点
//   - 训练器不持有数据，输入由调用方按成员输入契约路由
package train

import (
	"context"
	"fmt"
	"sync"
)

// Device 是计算设备的互斥租约。
// 同一设备上同时只允许一个训练/搜索任务，串行化由租约而非调用方自觉保证。
type Device struct {
	name string
	sem  chan struct{}
}

// NewDevice 创建一个命名设备。
func NewDevice(name string) *Device {
	return &Device{name: name, sem: make(chan struct{}, 1)}
}

// Name 返回设备名。
func (d *Device) Name() string { return d.name }

// Acquire 阻塞直到拿到设备或 ctx 取消。
// 返回的 release 可重复调用，只有第一次生效，方便挂在 defer 上。
func (d *Device) Acquire(ctx context.Context) (release func(), err error) {
	select {
	case d.sem <- struct{}{}:
	case <-ctx.Done():
		return nil, fmt.Errorf("acquire device %s: %w", d.name, ctx.Err())
	}
	var once sync.Once
	return func() {
		once.Do(func() { <-d.sem })
	}, nil
}

// TryAcquire 非阻塞尝试获取设备，失败返回 false。
func (d *Device) TryAcquire() (release func(), ok bool) {
	select {
	case d.sem <- struct{}{}:
	default:
		return nil, false
	}
	var once sync.Once
	return func() {
		once.Do(func() { <-d.sem })
	}, true
}

var (
	defaultDevice     *Device
	defaultDeviceOnce sync.Once
)

// DefaultDevice 返回全进程共享的默认设备。
func DefaultDevice() *Device {
	defaultDeviceOnce.Do(func() {
		defaultDevice = NewDevice("local")
	})
	return defaultDevice
}
