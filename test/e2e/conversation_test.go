/*
Copyright 2025 The replend Authors

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package e2e

import (
	"bytes"
	"encoding/json"
	"net/http"
	"os"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	apiv1 "github.com/replenlab/replend/api/v1"
	"github.com/replenlab/replend/internal/classify"
	"github.com/replenlab/replend/pkg/core"
)

func turn(sessionID, text string) apiv1.TurnResponse {
	GinkgoHelper()
	if sessionID == "" {
		sessionID = "new"
	}
	body, err := json.Marshal(apiv1.TurnRequest{Text: text})
	Expect(err).NotTo(HaveOccurred())

	resp, err := http.Post(srv.URL+"/api/v1/sessions/"+sessionID+"/turns",
		"application/json", bytes.NewReader(body))
	Expect(err).NotTo(HaveOccurred())
	defer resp.Body.Close()
	Expect(resp.StatusCode).To(Equal(http.StatusOK))

	var out apiv1.TurnResponse
	Expect(json.NewDecoder(resp.Body).Decode(&out)).To(Succeed())
	return out
}

func getSession(sessionID string) (apiv1.SessionResponse, int) {
	GinkgoHelper()
	resp, err := http.Get(srv.URL + "/api/v1/sessions/" + sessionID)
	Expect(err).NotTo(HaveOccurred())
	defer resp.Body.Close()

	var out apiv1.SessionResponse
	if resp.StatusCode == http.StatusOK {
		Expect(json.NewDecoder(resp.Body).Decode(&out)).To(Succeed())
	}
	return out, resp.StatusCode
}

var _ = Describe("a replenishment conversation", Ordered, func() {
	var (
		sessionID     string
		baseObjective float64
		whatIfObj     float64
	)

	It("retrieves inventory data first", func() {
		resp := turn("", "show me the fast-moving items")
		Expect(resp.Intent).To(Equal(classify.IntentRetrieve))
		Expect(resp.SessionID).NotTo(BeEmpty())
		Expect(resp.Frame).NotTo(BeEmpty())
		Expect(resp.Solution).To(BeNil())
		sessionID = resp.SessionID
	})

	It("optimizes the replenishment plan", func() {
		resp := turn(sessionID, "optimize my replenishment plan")
		Expect(resp.Intent).To(Equal(classify.IntentOptimize))
		Expect(resp.Solution).NotTo(BeNil())
		Expect(resp.Solution.Status).To(Equal(core.StatusOptimal))
		Expect(resp.Solution.Decisions).NotTo(BeEmpty())
		Expect(resp.Solution.SpecFingerprint).To(HaveLen(16))
		baseObjective = resp.Solution.Objective
	})

	It("answers a demand what-if against the active model", func() {
		resp := turn(sessionID, "what if demand +25%")
		Expect(resp.Intent).To(Equal(classify.IntentWhatIf))
		Expect(resp.Solution).NotTo(BeNil())
		Expect(resp.Solution.Status).To(Equal(core.StatusOptimal))
		Expect(resp.Solution.Objective).To(BeNumerically(">", baseObjective))
		whatIfObj = resp.Solution.Objective
	})

	It("runs an independent capacity what-if against the base plan", func() {
		resp := turn(sessionID, "what if capacity -20%")
		Expect(resp.Solution).NotTo(BeNil())
		Expect(resp.Solution.Objective).To(BeNumerically(">=", baseObjective),
			"tightening capacity cannot improve the objective")

		info, code := getSession(sessionID)
		Expect(code).To(Equal(http.StatusOK))
		Expect(info.Scenarios).To(Equal(2))
		Expect(info.HasActiveModel).To(BeTrue())
	})

	It("returns the identical cached solution for a repeated what-if", func() {
		fresh := turn("", "optimize my replenishment plan")
		Expect(fresh.Solution).NotTo(BeNil())

		first := turn(fresh.SessionID, "what if demand +25%")
		Expect(first.Solution).NotTo(BeNil())
		Expect(first.Solution.Objective).To(Equal(whatIfObj),
			"same base and same delta must reproduce the earlier scenario exactly")
	})

	It("renders a chart of the latest solution", func() {
		resp := turn(sessionID, "plot the order quantities")
		Expect(resp.Intent).To(Equal(classify.IntentVisualize))
		Expect(resp.ChartPath).NotTo(BeEmpty())

		data, err := os.ReadFile(resp.ChartPath)
		Expect(err).NotTo(HaveOccurred())
		Expect(json.Valid(data)).To(BeTrue(), "chart specs are JSON documents")
	})

	It("closes the session", func() {
		req, err := http.NewRequest(http.MethodDelete, srv.URL+"/api/v1/sessions/"+sessionID, nil)
		Expect(err).NotTo(HaveOccurred())
		resp, err := http.DefaultClient.Do(req)
		Expect(err).NotTo(HaveOccurred())
		resp.Body.Close()
		Expect(resp.StatusCode).To(Equal(http.StatusNoContent))

		_, code := getSession(sessionID)
		Expect(code).To(Equal(http.StatusNotFound))
	})
})

var _ = Describe("conversation guardrails", func() {
	It("asks for an optimization before a what-if", func() {
		resp := turn("", "what if demand +10%")
		Expect(resp.Intent).To(Equal(classify.IntentWhatIf))
		Expect(resp.Solution).To(BeNil())
		Expect(resp.Message).To(ContainSubstring("no active model"))
	})

	It("guides users who ask for something unrelated", func() {
		resp := turn("", "sing me a song")
		Expect(resp.Intent).To(Equal(classify.IntentUnknown))
		Expect(resp.Message).NotTo(BeEmpty())
	})
})
