package model

import "testing"

func TestCampaignStatusDispatchable(t *testing.T) {
	cases := map[CampaignStatus]bool{
		CampaignDraft:     true,
		CampaignScheduled: true,
		CampaignSending:   false,
		CampaignSent:      false,
	}
	for status, want := range cases {
		if got := status.Dispatchable(); got != want {
			t.Errorf("%s: expected %v, got %v", status, want, got)
		}
	}
}

func TestDispatchReportAddCounts(t *testing.T) {
	var r DispatchReport
	r.Add(DeliveryOutcome{ClientID: 1, Channel: ChannelEmail, Success: true})
	r.Add(DeliveryOutcome{ClientID: 1, Channel: ChannelSMS, Error: "no phone"})
	r.Add(DeliveryOutcome{Channel: ChannelBroadcast, Success: true})

	if r.Attempted != 3 || r.Delivered != 2 || r.Failed != 1 {
		t.Fatalf("unexpected counters: %+v", r)
	}
	if len(r.Outcomes) != 3 {
		t.Fatalf("expected 3 outcomes, got %d", len(r.Outcomes))
	}
}
