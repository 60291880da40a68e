package dts

import "fmt"

// Adapters are formatting collaborators: each wraps a Chain, builds a
// descriptive message for one vertical, and hands it to Append. They
// never touch chain state directly — one append call plus the two
// read-only queries is the whole contract.

// BuildingAutomationAdapter logs building automation system events
// (HVAC, lighting, access control, fire safety) for KNX/BACnet-class
// installations.
type BuildingAutomationAdapter struct {
	chain      *Chain
	buildingID string
	zoneID     string
}

// NewBuildingAutomationAdapter wraps a fresh chain for the given device.
// buildingID and zoneID are optional context strings appended to
// messages when set.
func NewBuildingAutomationAdapter(deviceID, buildingID, zoneID string) *BuildingAutomationAdapter {
	return &BuildingAutomationAdapter{
		chain:      NewChain(deviceID),
		buildingID: buildingID,
		zoneID:     zoneID,
	}
}

// LogHVACEvent records an HVAC change (setpoint, mode, airflow).
func (a *BuildingAutomationAdapter) LogHVACEvent(eventType, zone string, value float64, unit string) string {
	msg := fmt.Sprintf("HVAC Event | Type:%s | Zone:%s | Value:%g", eventType, zone, value)
	if unit != "" {
		msg += " " + unit
	}
	if a.zoneID != "" && a.zoneID != zone {
		msg += " | ZoneID:" + a.zoneID
	}
	return a.chain.Append(msg, UserOperator, SeverityInfo)
}

// LogLightingEvent records a brightness change and its control source.
func (a *BuildingAutomationAdapter) LogLightingEvent(zone string, oldLevel, newLevel int, source string) string {
	msg := fmt.Sprintf("Lighting Control | Zone:%s | From:%d%% | To:%d%% | Source:%s",
		zone, oldLevel, newLevel, source)
	return a.chain.Append(msg, UserOperator, SeverityInfo)
}

// LogAccessControl records an access decision. Denials log at warning
// severity.
func (a *BuildingAutomationAdapter) LogAccessControl(doorID, userID string, granted bool, reason string) string {
	grantedStr := "No"
	if granted {
		grantedStr = "Yes"
	}
	msg := fmt.Sprintf("Access Control | Door:%s | User:%s | Granted:%s", doorID, userID, grantedStr)
	if !granted && reason != "" {
		msg += " | Reason:" + reason
	}
	sev := SeverityInfo
	if !granted {
		sev = SeverityWarning
	}
	return a.chain.Append(msg, UserSystem, sev)
}

// LogEnergyConsumption records a metering sample. peakDemandKW <= 0
// omits the peak figure.
func (a *BuildingAutomationAdapter) LogEnergyConsumption(meterID string, consumptionKWH, peakDemandKW float64) string {
	msg := fmt.Sprintf("Energy Consumption | Meter:%s | Consumption:%g kWh", meterID, consumptionKWH)
	if peakDemandKW > 0 {
		msg += fmt.Sprintf(" | Peak:%g kW", peakDemandKW)
	}
	if a.buildingID != "" {
		msg += " | Building:" + a.buildingID
	}
	return a.chain.Append(msg, UserSystem, SeverityInfo)
}

// LogFireSafetyEvent records a life-safety event; defaults to critical
// severity at call sites.
func (a *BuildingAutomationAdapter) LogFireSafetyEvent(eventType, location string, severity Severity) string {
	msg := fmt.Sprintf("Fire Safety Event | Type:%s | Location:%s", eventType, location)
	if a.zoneID != "" {
		msg += " | Zone:" + a.zoneID
	}
	return a.chain.Append(msg, UserSystem, severity)
}

// Chain exposes the underlying chain for export and queries.
func (a *BuildingAutomationAdapter) Chain() *Chain { return a.chain }

// IndustrialAdapter logs industrial/OT events for PLCs, SCADA, and
// manufacturing lines.
type IndustrialAdapter struct {
	chain    *Chain
	assetTag string
	lineID   string
}

// NewIndustrialAdapter wraps a fresh chain for an industrial device.
func NewIndustrialAdapter(deviceID, assetTag, lineID string) *IndustrialAdapter {
	return &IndustrialAdapter{
		chain:    NewChain(deviceID),
		assetTag: assetTag,
		lineID:   lineID,
	}
}

// LogPLCEvent records a PLC program event. rungNumber < 0 omits the rung.
func (a *IndustrialAdapter) LogPLCEvent(program string, rungNumber int, description string) string {
	msg := "PLC Event | Program:" + program
	if rungNumber >= 0 {
		msg += fmt.Sprintf(" | Rung:%d", rungNumber)
	}
	if description != "" {
		msg += " | " + description
	}
	if a.assetTag != "" {
		msg += " | Asset:" + a.assetTag
	}
	return a.chain.Append(msg, UserSystem, SeverityInfo)
}

// LogIOChange records an I/O state transition, which is the primary
// forensic signal in control systems.
func (a *IndustrialAdapter) LogIOChange(ioAddress, oldValue, newValue string) string {
	msg := fmt.Sprintf("I/O Change | Address:%s | From:%s | To:%s", ioAddress, oldValue, newValue)
	if a.lineID != "" {
		msg += " | Line:" + a.lineID
	}
	return a.chain.Append(msg, UserSystem, SeverityInfo)
}

// LogSCADAAlarm records a SCADA alarm with operator acknowledgement state.
func (a *IndustrialAdapter) LogSCADAAlarm(alarmTag, condition string, acknowledged bool, severity Severity) string {
	ack := "No"
	if acknowledged {
		ack = "Yes"
	}
	msg := fmt.Sprintf("SCADA Alarm | Tag:%s | Condition:%s | Acked:%s", alarmTag, condition, ack)
	return a.chain.Append(msg, UserOperator, severity)
}

// LogSafetyInterlock records an interlock trip or reset. Trips log at
// critical severity.
func (a *IndustrialAdapter) LogSafetyInterlock(interlockID string, triggered bool, reason string) string {
	state, sev := "RESET", SeverityInfo
	if triggered {
		state, sev = "TRIGGERED", SeverityCritical
	}
	msg := fmt.Sprintf("Safety Interlock %s | ID:%s", state, interlockID)
	if reason != "" {
		msg += " | Reason:" + reason
	}
	if a.assetTag != "" {
		msg += " | Asset:" + a.assetTag
	}
	return a.chain.Append(msg, UserSystem, sev)
}

// LogBatchEvent records a production batch lifecycle event.
func (a *IndustrialAdapter) LogBatchEvent(batchID, event string) string {
	msg := fmt.Sprintf("Production Batch | Batch:%s | Event:%s", batchID, event)
	if a.lineID != "" {
		msg += " | Line:" + a.lineID
	}
	return a.chain.Append(msg, UserSystem, SeverityInfo)
}

// Chain exposes the underlying chain for export and queries.
func (a *IndustrialAdapter) Chain() *Chain { return a.chain }

// AnonymizerFunc maps a patient identifier to its logged form.
type AnonymizerFunc func(string) string

// defaultAnonymizer hashes the patient id with the chain's own digest
// engine and keeps the first 16 hex characters: one-way, deterministic,
// and short enough to stay readable in message text.
func defaultAnonymizer(patientID string) string {
	return Sum256([]byte(patientID)).Hex()[:16]
}

// ClinicalTrialAdapter logs clinical trial device events with automatic
// patient identifier anonymization, for GxP-style audit requirements.
type ClinicalTrialAdapter struct {
	chain      *Chain
	protocolID string
	anonymize  AnonymizerFunc
}

// NewClinicalTrialAdapter wraps a fresh chain. A nil anonymizer selects
// the built-in digest-based one.
func NewClinicalTrialAdapter(deviceID, protocolID string, anonymizer AnonymizerFunc) *ClinicalTrialAdapter {
	if anonymizer == nil {
		anonymizer = defaultAnonymizer
	}
	return &ClinicalTrialAdapter{
		chain:      NewChain(deviceID),
		protocolID: protocolID,
		anonymize:  anonymizer,
	}
}

// LogPatientEnrolled records an enrollment. The raw patient id never
// reaches the log; only its anonymized form does.
func (a *ClinicalTrialAdapter) LogPatientEnrolled(patientID, siteID string) string {
	msg := fmt.Sprintf("Patient Enrolled | Subject:%s | Site:%s", a.anonymize(patientID), siteID)
	if a.protocolID != "" {
		msg += " | Protocol:" + a.protocolID
	}
	return a.chain.Append(msg, UserOperator, SeverityInfo)
}

// LogVisitEvent records the start or completion of a scheduled visit.
func (a *ClinicalTrialAdapter) LogVisitEvent(started bool, patientID string, visitNumber int, visitType string) string {
	event := "Visit Completed"
	if started {
		event = "Visit Started"
	}
	msg := fmt.Sprintf("%s | Subject:%s | VisitNumber:%d", event, a.anonymize(patientID), visitNumber)
	if visitType != "" {
		msg += " | VisitType:" + visitType
	}
	return a.chain.Append(msg, UserOperator, SeverityInfo)
}

// LogDataCollected records a data capture event for a visit.
func (a *ClinicalTrialAdapter) LogDataCollected(patientID, visitID, dataType string) string {
	msg := fmt.Sprintf("Data Collected | Subject:%s | Visit:%s | Type:%s",
		a.anonymize(patientID), visitID, dataType)
	return a.chain.Append(msg, UserService, SeverityInfo)
}

// LogProtocolDeviation records a deviation at warning severity.
func (a *ClinicalTrialAdapter) LogProtocolDeviation(patientID, description string) string {
	msg := fmt.Sprintf("Protocol Deviation | Subject:%s | %s", a.anonymize(patientID), description)
	if a.protocolID != "" {
		msg += " | Protocol:" + a.protocolID
	}
	return a.chain.Append(msg, UserOperator, SeverityWarning)
}

// LogAdverseEvent records an adverse event at critical severity.
func (a *ClinicalTrialAdapter) LogAdverseEvent(patientID, description string) string {
	msg := fmt.Sprintf("Adverse Event | Subject:%s | %s", a.anonymize(patientID), description)
	return a.chain.Append(msg, UserOperator, SeverityCritical)
}

// LogDataExport records a bulk export of trial data, noting whether the
// exported records were anonymized.
func (a *ClinicalTrialAdapter) LogDataExport(exportType, destination string, recordCount int, anonymized bool) string {
	anonStr := "No"
	if anonymized {
		anonStr = "Yes"
	}
	msg := fmt.Sprintf("Data Exported | Type:%s | Destination:%s | Records:%d | Anonymized:%s",
		exportType, destination, recordCount, anonStr)
	return a.chain.Append(msg, UserAdmin, SeverityInfo)
}

// Chain exposes the underlying chain for export and queries.
func (a *ClinicalTrialAdapter) Chain() *Chain { return a.chain }

// DICOMAdapter logs DICOM workflow events for PACS and radiology
// devices: study lifecycle, AI inference, transfers, access.
type DICOMAdapter struct {
	chain *Chain
}

// NewDICOMAdapter wraps a fresh chain for an imaging device.
func NewDICOMAdapter(deviceID string) *DICOMAdapter {
	return &DICOMAdapter{chain: NewChain(deviceID)}
}

// LogStudyCreated records creation of a study.
func (a *DICOMAdapter) LogStudyCreated(studyUID, modality, patientID string) string {
	msg := fmt.Sprintf("Study Created | StudyUID:%s | Modality:%s | Patient:%s",
		studyUID, modality, patientID)
	return a.chain.Append(msg, UserSystem, SeverityInfo)
}

// LogInstanceStored records receipt of an SOP instance into a study.
func (a *DICOMAdapter) LogInstanceStored(studyUID, sopInstanceUID, sourceAE string) string {
	msg := fmt.Sprintf("Instance Stored | StudyUID:%s | SOPInstanceUID:%s | Source:%s",
		studyUID, sopInstanceUID, sourceAE)
	return a.chain.Append(msg, UserSystem, SeverityInfo)
}

// LogAIInferenceRequested records dispatch of a study to an AI model.
func (a *DICOMAdapter) LogAIInferenceRequested(studyUID, model string) string {
	msg := fmt.Sprintf("AI Inference Requested | StudyUID:%s | Model:%s", studyUID, model)
	return a.chain.Append(msg, UserService, SeverityInfo)
}

// LogAIInferenceCompleted records an AI inference result on a study.
func (a *DICOMAdapter) LogAIInferenceCompleted(studyUID, model, result string, confidence float64) string {
	msg := fmt.Sprintf("AI Inference Completed | StudyUID:%s | Model:%s | Result:%s | Confidence:%.2f",
		studyUID, model, result, confidence)
	return a.chain.Append(msg, UserService, SeverityInfo)
}

// LogTransferInitiated records an outbound image transfer.
func (a *DICOMAdapter) LogTransferInitiated(studyUID, destinationAE string, instanceCount int) string {
	msg := fmt.Sprintf("Transfer Initiated | StudyUID:%s | Destination:%s | Instances:%d",
		studyUID, destinationAE, instanceCount)
	return a.chain.Append(msg, UserSystem, SeverityInfo)
}

// LogAccessEvent records a study access; unauthorized access logs at
// error severity under the unauthorized actor code.
func (a *DICOMAdapter) LogAccessEvent(studyUID, accessor string, authorized bool) string {
	user, sev := UserOperator, SeverityInfo
	if !authorized {
		user, sev = UserUnauthorized, SeverityError
	}
	msg := fmt.Sprintf("Study Access | StudyUID:%s | Accessor:%s", studyUID, accessor)
	return a.chain.Append(msg, user, sev)
}

// Chain exposes the underlying chain for export and queries.
func (a *DICOMAdapter) Chain() *Chain { return a.chain }

// MedTechAdapter logs medical device events (infusion pumps and
// similar): self tests, medication delivery, alarms, maintenance.
type MedTechAdapter struct {
	chain *Chain
}

// NewMedTechAdapter wraps a fresh chain for a medical device.
func NewMedTechAdapter(deviceID string) *MedTechAdapter {
	return &MedTechAdapter{chain: NewChain(deviceID)}
}

// LogPOSTResult records the power-on self test outcome. Failures log at
// critical severity.
func (a *MedTechAdapter) LogPOSTResult(passed bool, details string) string {
	outcome, sev := "PASS", SeverityInfo
	if !passed {
		outcome, sev = "FAIL", SeverityCritical
	}
	msg := "Power-On Self Test | Result:" + outcome
	if details != "" {
		msg += " | " + details
	}
	return a.chain.Append(msg, UserSystem, sev)
}

// LogMedicationEvent records a delivery event (start, rate change,
// completion) with drug and dose.
func (a *MedTechAdapter) LogMedicationEvent(event, drug string, doseML float64, user UserID) string {
	msg := fmt.Sprintf("Medication Event | Event:%s | Drug:%s | Dose:%.2f mL", event, drug, doseML)
	return a.chain.Append(msg, user, SeverityInfo)
}

// LogSafetyAlarm records a clinical alarm with its priority.
func (a *MedTechAdapter) LogSafetyAlarm(alarmType, priority string) string {
	msg := fmt.Sprintf("Safety Alarm | Type:%s | Priority:%s", alarmType, priority)
	return a.chain.Append(msg, UserSystem, SeverityCritical)
}

// LogCalibration records a calibration run. Out-of-tolerance results
// log at error severity.
func (a *MedTechAdapter) LogCalibration(parameter string, withinTolerance bool, user UserID) string {
	outcome, sev := "OK", SeverityInfo
	if !withinTolerance {
		outcome, sev = "OUT_OF_TOLERANCE", SeverityError
	}
	msg := fmt.Sprintf("Calibration | Parameter:%s | Result:%s", parameter, outcome)
	return a.chain.Append(msg, user, sev)
}

// LogMaintenance records a service visit.
func (a *MedTechAdapter) LogMaintenance(maintenanceType, technicianID, notes string) string {
	msg := fmt.Sprintf("Maintenance | Type:%s | Technician:%s", maintenanceType, technicianID)
	if notes != "" {
		msg += " | Notes:" + notes
	}
	return a.chain.Append(msg, UserService, SeverityInfo)
}

// LogFirmwareUpdate records a firmware version transition.
func (a *MedTechAdapter) LogFirmwareUpdate(oldVersion, newVersion string, user UserID) string {
	msg := fmt.Sprintf("Firmware Update | From:%s | To:%s", oldVersion, newVersion)
	return a.chain.Append(msg, user, SeverityWarning)
}

// Chain exposes the underlying chain for export and queries.
func (a *MedTechAdapter) Chain() *Chain { return a.chain }
