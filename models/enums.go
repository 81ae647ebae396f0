package models

import (
	"errors"
	"strings"
)

type Origin string

const (
	OriginManual Origin = "Manual"
	OriginERP    Origin = "ERP"
	OriginXML    Origin = "XML"
)

func (o Origin) IsValid() bool {
	switch o {
	case OriginManual, OriginERP, OriginXML:
		return true
	}
	return false
}

// CargoStatus replaces the old soft-delete boolean. Deleted records stay in the
// table and are visible only to the reactivation check.
type CargoStatus string

const (
	CargoStatusActive  CargoStatus = "active"
	CargoStatusDeleted CargoStatus = "deleted"
)

func (s CargoStatus) IsValid() bool {
	switch s {
	case CargoStatusActive, CargoStatusDeleted:
		return true
	}
	return false
}

type SyncEntity string

const (
	SyncEntityVehicles SyncEntity = "vehicles"
	SyncEntityCargo    SyncEntity = "cargo"
)

// ParseSyncEntity accepts the English names plus the route names used by the front end.
func ParseSyncEntity(s string) (SyncEntity, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "vehicles", "veiculos":
		return SyncEntityVehicles, nil
	case "cargo", "cargas":
		return SyncEntityCargo, nil
	}
	return "", errors.New("invalid sync entity")
}

const (
	SyncRunStatusSuccess = "success"
	SyncRunStatusFailed  = "failed"
)
