// Package services contains application services for the gophcal client:
// key management (KeyService), calendar editing with change tracking
// (CalendarService) and exchange of change logs with other devices
// (SyncService).
package services
