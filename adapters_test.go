package dts

import (
	"strings"
	"testing"
)

func TestBuildingAutomationAdapter(t *testing.T) {
	a := NewBuildingAutomationAdapter("BMS-01", "HQ", "Z-3")
	entries := []string{
		a.LogHVACEvent("setpoint_change", "Z-3", 21.5, "C"),
		a.LogLightingEvent("Z-3", 80, 20, "schedule"),
		a.LogAccessControl("DOOR-7", "badge-1234", false, "expired badge"),
		a.LogEnergyConsumption("MTR-02", 143.2, 18.5),
		a.LogFireSafetyEvent("smoke_detected", "server room", SeverityCritical),
	}
	if !VerifyChainStrict(entries) {
		t.Fatal("adapter chain does not verify")
	}

	denied, err := DecodeEntry(entries[2])
	if err != nil {
		t.Fatal(err)
	}
	if denied.Severity != SeverityWarning {
		t.Errorf("denied access severity = %v", denied.Severity)
	}
	if !strings.Contains(denied.Message, "Granted:No") ||
		!strings.Contains(denied.Message, "Reason:expired badge") {
		t.Errorf("denied access message = %q", denied.Message)
	}

	energy, err := DecodeEntry(entries[3])
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(energy.Message, "Consumption:143.2 kWh") ||
		!strings.Contains(energy.Message, "Peak:18.5 kW") ||
		!strings.Contains(energy.Message, "Building:HQ") {
		t.Errorf("energy entry = %q", energy.Message)
	}

	fire, err := DecodeEntry(entries[4])
	if err != nil {
		t.Fatal(err)
	}
	if fire.Severity != SeverityCritical || !strings.Contains(fire.Message, "Zone:Z-3") {
		t.Errorf("fire safety entry = %q", fire.Message)
	}

	if a.Chain().SequenceNumber() != 5 {
		t.Errorf("seq = %d", a.Chain().SequenceNumber())
	}
}

func TestIndustrialAdapter(t *testing.T) {
	a := NewIndustrialAdapter("PLC-09", "AST-7741", "LINE-2")
	entries := []string{
		a.LogPLCEvent("main", 42, "interlock engaged"),
		a.LogPLCEvent("main", -1, ""),
		a.LogIOChange("DI-4.2", "0", "1"),
		a.LogSCADAAlarm("TT-101", "high temperature", false, SeverityError),
		a.LogSafetyInterlock("ILK-3", true, "guard door open"),
		a.LogSafetyInterlock("ILK-3", false, ""),
		a.LogBatchEvent("B-20260831-01", "started"),
	}
	if !VerifyChainStrict(entries) {
		t.Fatal("adapter chain does not verify")
	}

	withRung, _ := DecodeEntry(entries[0])
	if !strings.Contains(withRung.Message, "Rung:42") ||
		!strings.Contains(withRung.Message, "Asset:AST-7741") {
		t.Errorf("PLC message = %q", withRung.Message)
	}
	withoutRung, _ := DecodeEntry(entries[1])
	if strings.Contains(withoutRung.Message, "Rung:") {
		t.Errorf("negative rung not omitted: %q", withoutRung.Message)
	}
	alarm, _ := DecodeEntry(entries[3])
	if alarm.Severity != SeverityError || alarm.UserID != UserOperator {
		t.Errorf("alarm codes = %v/%v", alarm.UserID, alarm.Severity)
	}
	tripped, _ := DecodeEntry(entries[4])
	if tripped.Severity != SeverityCritical ||
		!strings.Contains(tripped.Message, "Safety Interlock TRIGGERED") ||
		!strings.Contains(tripped.Message, "Reason:guard door open") {
		t.Errorf("interlock trip entry = %q", tripped.Message)
	}
	reset, _ := DecodeEntry(entries[5])
	if reset.Severity != SeverityInfo || !strings.Contains(reset.Message, "Safety Interlock RESET") {
		t.Errorf("interlock reset entry = %q", reset.Message)
	}
	io, _ := DecodeEntry(entries[2])
	if !strings.Contains(io.Message, "Line:LINE-2") {
		t.Errorf("I/O message = %q", io.Message)
	}
}

func TestClinicalTrialAdapter_Anonymization(t *testing.T) {
	const patientID = "PATIENT-SSN-123-45-6789"

	a := NewClinicalTrialAdapter("CGM-17", "PROTO-9", nil)
	entries := []string{
		a.LogPatientEnrolled(patientID, "SITE-03"),
		a.LogVisitEvent(true, patientID, 2, "follow-up"),
		a.LogDataCollected(patientID, "V2", "glucose"),
		a.LogVisitEvent(false, patientID, 2, ""),
		a.LogProtocolDeviation(patientID, "missed visit window"),
		a.LogAdverseEvent(patientID, "hypoglycemic episode"),
	}
	if !VerifyChainStrict(entries) {
		t.Fatal("adapter chain does not verify")
	}

	subject := defaultAnonymizer(patientID)
	if len(subject) != 16 {
		t.Fatalf("anonymized form %q", subject)
	}
	for i, raw := range entries {
		if strings.Contains(raw, patientID) {
			t.Errorf("entry %d leaks the raw patient id", i)
		}
		if !strings.Contains(raw, subject) {
			t.Errorf("entry %d missing anonymized subject", i)
		}
	}

	started, _ := DecodeEntry(entries[1])
	if started.UserID != UserOperator || started.Severity != SeverityInfo ||
		!strings.Contains(started.Message, "Visit Started") ||
		!strings.Contains(started.Message, "VisitNumber:2") ||
		!strings.Contains(started.Message, "VisitType:follow-up") {
		t.Errorf("visit started entry = %q", started.Message)
	}
	completed, _ := DecodeEntry(entries[3])
	if !strings.Contains(completed.Message, "Visit Completed") ||
		strings.Contains(completed.Message, "VisitType:") {
		t.Errorf("visit completed entry = %q", completed.Message)
	}

	adverse, _ := DecodeEntry(entries[5])
	if adverse.Severity != SeverityCritical {
		t.Errorf("adverse event severity = %v", adverse.Severity)
	}

	export, err := DecodeEntry(a.LogDataExport("CSV", "sponsor-sftp", 1200, true))
	if err != nil {
		t.Fatal(err)
	}
	if export.UserID != UserAdmin || !strings.Contains(export.Message, "Records:1200") ||
		!strings.Contains(export.Message, "Anonymized:Yes") {
		t.Errorf("data export entry = %q", export.Message)
	}

	// A custom anonymizer replaces the built-in one.
	b := NewClinicalTrialAdapter("CGM-17", "", func(string) string { return "SUBJ-001" })
	if raw := b.LogPatientEnrolled(patientID, "SITE-03"); !strings.Contains(raw, "SUBJ-001") {
		t.Errorf("custom anonymizer ignored: %s", raw)
	}
}

func TestDICOMAdapter(t *testing.T) {
	a := NewDICOMAdapter("PACS-GW-1")
	entries := []string{
		a.LogStudyCreated("1.2.840.10008.1", "CT", "P-4471"),
		a.LogInstanceStored("1.2.840.10008.1", "1.2.840.10008.1.1", "MODALITY-AE"),
		a.LogAIInferenceRequested("1.2.840.10008.1", "chest-ct-v3"),
		a.LogAIInferenceCompleted("1.2.840.10008.1", "chest-ct-v3", "nodule detected", 0.87),
		a.LogTransferInitiated("1.2.840.10008.1", "ARCHIVE-AE", 512),
		a.LogAccessEvent("1.2.840.10008.1", "dr.smith", true),
		a.LogAccessEvent("1.2.840.10008.1", "unknown-host", false),
	}
	if !VerifyChainStrict(entries) {
		t.Fatal("adapter chain does not verify")
	}

	inference, _ := DecodeEntry(entries[3])
	if inference.UserID != UserService || !strings.Contains(inference.Message, "Confidence:0.87") {
		t.Errorf("inference entry = %q", inference.Message)
	}
	stored, _ := DecodeEntry(entries[1])
	if !strings.Contains(stored.Message, "Source:MODALITY-AE") {
		t.Errorf("instance stored entry = %q", stored.Message)
	}
	unauthorized, _ := DecodeEntry(entries[6])
	if unauthorized.UserID != UserUnauthorized || unauthorized.Severity != SeverityError {
		t.Errorf("unauthorized access codes = %v/%v", unauthorized.UserID, unauthorized.Severity)
	}
}

func TestMedTechAdapter(t *testing.T) {
	a := NewMedTechAdapter("PUMP-0042")
	entries := []string{
		a.LogPOSTResult(true, "all checks nominal"),
		a.LogMedicationEvent("infusion_started", "saline", 500, UserOperator),
		a.LogSafetyAlarm("occlusion", "high"),
		a.LogCalibration("flow_rate", false, UserService),
		a.LogMaintenance("preventive", "TECH-88", "filter replaced"),
		a.LogFirmwareUpdate("2.1.0", "2.2.0", UserAdmin),
		a.LogPOSTResult(false, "battery check failed"),
	}
	if !VerifyChainStrict(entries) {
		t.Fatal("adapter chain does not verify")
	}

	pass, _ := DecodeEntry(entries[0])
	if pass.Severity != SeverityInfo || !strings.Contains(pass.Message, "Result:PASS") {
		t.Errorf("POST pass entry = %q", pass.Message)
	}
	fail, _ := DecodeEntry(entries[6])
	if fail.Severity != SeverityCritical || !strings.Contains(fail.Message, "Result:FAIL") {
		t.Errorf("POST fail entry = %q", fail.Message)
	}
	dose, _ := DecodeEntry(entries[1])
	if dose.UserID != UserOperator || !strings.Contains(dose.Message, "Dose:500.00 mL") {
		t.Errorf("medication entry = %q", dose.Message)
	}
	cal, _ := DecodeEntry(entries[3])
	if cal.Severity != SeverityError || !strings.Contains(cal.Message, "Result:OUT_OF_TOLERANCE") {
		t.Errorf("calibration entry = %q", cal.Message)
	}
	maint, _ := DecodeEntry(entries[4])
	if maint.UserID != UserService || !strings.Contains(maint.Message, "Technician:TECH-88") ||
		!strings.Contains(maint.Message, "Notes:filter replaced") {
		t.Errorf("maintenance entry = %q", maint.Message)
	}
	fw, _ := DecodeEntry(entries[5])
	if fw.UserID != UserAdmin || fw.Severity != SeverityWarning {
		t.Errorf("firmware codes = %v/%v", fw.UserID, fw.Severity)
	}
}
