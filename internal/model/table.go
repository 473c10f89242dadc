package model

import "time"

// TableStatus is the occupancy state of a physical table.
type TableStatus string

const (
	TableFree     TableStatus = "free"
	TableOccupied TableStatus = "occupied"
	TableReserved TableStatus = "reserved"
)

// Table is a physical table in the dining room. Name doubles as the table
// code printed on the QR card and stored on orders.
//
// Fields:
//
//	CurrentReservationID – reservation holding the table while it is
//	                       reserved or occupied by a reservation; nil for
//	                       walk-ins and free tables.
type Table struct {
	ID                   uint64      // restaurant_tables.id
	Name                 string      // restaurant_tables.name
	Seats                int         // restaurant_tables.seats
	Status               TableStatus // restaurant_tables.status
	CurrentReservationID *uint64     // restaurant_tables.current_reservation_id
	UpdatedAt            time.Time   // restaurant_tables.updated_at
}
