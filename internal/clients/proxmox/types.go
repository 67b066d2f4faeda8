// Ultrawide - Home Lab Dashboard Integration Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ultrawide

package proxmox

// Config holds the Proxmox VE API token. TokenID has the form
// user@realm!tokenname.
type Config struct {
	URL         string `json:"url"`
	TokenID     string `json:"token_id"`
	TokenSecret string `json:"token_secret"`
}

// Node is one cluster member.
type Node struct {
	Node    string  `json:"node"`
	Status  string  `json:"status"`
	CPU     float64 `json:"cpu"`
	MaxCPU  int     `json:"maxcpu"`
	Mem     int64   `json:"mem"`
	MaxMem  int64   `json:"maxmem"`
	Disk    int64   `json:"disk"`
	MaxDisk int64   `json:"maxdisk"`
	Uptime  int64   `json:"uptime"`
}

// Online reports whether the node answered the cluster.
func (n Node) Online() bool { return n.Status == "online" }

// Guest types.
const (
	GuestQEMU = "qemu"
	GuestLXC  = "lxc"
)

// Guest is a VM or container.
type Guest struct {
	VMID   int     `json:"vmid"`
	Name   string  `json:"name"`
	Node   string  `json:"node"`
	Type   string  `json:"type"`
	Status string  `json:"status"`
	CPU    float64 `json:"cpu"`
	CPUs   float64 `json:"cpus"`
	Mem    int64   `json:"mem"`
	MaxMem int64   `json:"maxmem"`
	Uptime int64   `json:"uptime"`
}

// Running reports whether the guest is running.
func (g Guest) Running() bool { return g.Status == "running" }

// Snapshot is the node list plus all guests of online nodes sorted by VMID.
// Errors names nodes whose guest lists could not be fetched.
type Snapshot struct {
	Nodes  []Node            `json:"nodes"`
	Guests []Guest           `json:"guests"`
	Errors map[string]string `json:"errors,omitempty"`
}

// Running counts running guests.
func (s Snapshot) Running() int {
	n := 0
	for _, g := range s.Guests {
		if g.Running() {
			n++
		}
	}
	return n
}

// envelope is the {"data": ...} wrapper of every /api2/json response.
type envelope[T any] struct {
	Data T `json:"data"`
}
