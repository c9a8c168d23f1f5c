// Package catalog declares the data points exposed for ViCare devices.
//
// Each descriptor binds a key, a display name and Home Assistant metadata
// to accessors on a vicare handle type. Catalogs are process-wide values;
// the entity builder probes each descriptor once per handle and only
// materialises the ones the device supports.
package catalog
