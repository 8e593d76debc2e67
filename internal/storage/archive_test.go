// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage_test

import (
	"context"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/jeranaias/talks-tui/internal/model"
	"github.com/jeranaias/talks-tui/internal/storage"
)

func exchange(q, a string) *model.Transcript {
	tr := model.NewTranscript()
	Expect(tr.Append(model.NewQuestion(q))).To(Succeed())
	Expect(tr.Append(model.NewAnswer())).To(Succeed())
	Expect(tr.UpdateLastAnswer(model.Delta{Content: a})).To(Succeed())
	tr.SetResponding(false)
	return tr
}

var _ = Describe("Archive", func() {
	var (
		archive *storage.Archive
		ctx     context.Context
	)

	BeforeEach(func() {
		ctx = context.Background()
		var err error
		archive, err = storage.Open(":memory:")
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		Expect(archive.Close()).To(Succeed())
	})

	Describe("Save", func() {
		It("round-trips a conversation", func() {
			tr := exchange("Ile trwa kurs?", "Osiem tygodni.")
			saved, err := archive.Save(ctx, storage.FromTranscript("conv-1", tr, "qwen2.5:7b"))
			Expect(err).NotTo(HaveOccurred())
			Expect(saved).To(BeTrue())

			conv, err := archive.Get(ctx, "conv-1")
			Expect(err).NotTo(HaveOccurred())
			Expect(conv.Title).To(Equal("Ile trwa kurs?"))
			Expect(conv.Model).To(Equal("qwen2.5:7b"))
			Expect(conv.Turns).To(HaveLen(2))
			Expect(conv.Turns[0].Role).To(Equal(model.RoleQuestion))
			Expect(conv.Turns[1].Content).To(Equal("Osiem tygodni."))
			Expect(conv.Turns[1].ReplyTo).To(Equal(conv.Turns[0].ID))
		})

		It("keeps attachments and thoughts", func() {
			tr := model.NewTranscript()
			q := model.NewQuestion("what is this?", model.Attachment{URL: "https://example.com/a.png", Kind: "image"})
			Expect(tr.Append(q)).To(Succeed())
			Expect(tr.Append(model.NewAnswer())).To(Succeed())
			Expect(tr.UpdateLastAnswer(model.Delta{Tool: &model.ToolInvocation{Name: "search", Input: "a.png"}})).To(Succeed())
			Expect(tr.UpdateLastAnswer(model.Delta{Observation: "a cat", Content: "A cat."})).To(Succeed())
			tr.SetResponding(false)

			_, err := archive.Save(ctx, storage.FromTranscript("conv-2", tr, ""))
			Expect(err).NotTo(HaveOccurred())

			conv, err := archive.Get(ctx, "conv-2")
			Expect(err).NotTo(HaveOccurred())
			Expect(conv.Turns[0].Attachments).To(HaveLen(1))
			Expect(conv.Turns[0].Attachments[0].URL).To(Equal("https://example.com/a.png"))
			Expect(conv.Turns[1].Thoughts).To(HaveLen(1))
			Expect(conv.Turns[1].Thoughts[0].Tool.Name).To(Equal("search"))
			Expect(conv.Turns[1].Thoughts[0].Tool.Observation).To(Equal("a cat"))
		})

		It("skips empty conversations", func() {
			saved, err := archive.Save(ctx, storage.FromTranscript("empty", model.NewTranscript(), ""))
			Expect(err).NotTo(HaveOccurred())
			Expect(saved).To(BeFalse())

			metas, err := archive.List(ctx, 0)
			Expect(err).NotTo(HaveOccurred())
			Expect(metas).To(BeEmpty())
		})

		It("rejects a conversation without an id", func() {
			_, err := archive.Save(ctx, storage.FromTranscript("", exchange("q", "a"), ""))
			Expect(err).To(HaveOccurred())
		})

		It("replaces an earlier save of the same conversation", func() {
			tr := exchange("first", "one")
			_, err := archive.Save(ctx, storage.FromTranscript("conv", tr, ""))
			Expect(err).NotTo(HaveOccurred())

			Expect(tr.Append(model.NewQuestion("second"))).To(Succeed())
			_, err = archive.Save(ctx, storage.FromTranscript("conv", tr, ""))
			Expect(err).NotTo(HaveOccurred())

			metas, err := archive.List(ctx, 0)
			Expect(err).NotTo(HaveOccurred())
			Expect(metas).To(HaveLen(1))
			Expect(metas[0].TurnCount).To(Equal(3))

			conv, err := archive.Get(ctx, "conv")
			Expect(err).NotTo(HaveOccurred())
			Expect(conv.Turns).To(HaveLen(3))
			Expect(conv.Turns[2].Content).To(Equal("second"))
		})

		It("prunes the oldest conversations past the limit", func() {
			archive.MaxConversations = 2
			base := time.Now()
			for i, id := range []string{"a", "b", "c"} {
				conv := storage.FromTranscript(id, exchange(id, id), "")
				conv.UpdatedAt = base.Add(time.Duration(i) * time.Minute)
				_, err := archive.Save(ctx, conv)
				Expect(err).NotTo(HaveOccurred())
			}

			metas, err := archive.List(ctx, 0)
			Expect(err).NotTo(HaveOccurred())
			Expect(metas).To(HaveLen(2))
			Expect(metas[0].ID).To(Equal("c"))
			Expect(metas[1].ID).To(Equal("b"))

			_, err = archive.Get(ctx, "a")
			Expect(err).To(MatchError(storage.ErrNotFound))
		})
	})

	Describe("List", func() {
		BeforeEach(func() {
			base := time.Now()
			for i, id := range []string{"old", "mid", "new"} {
				conv := storage.FromTranscript(id, exchange(id, "x"), "")
				conv.UpdatedAt = base.Add(time.Duration(i) * time.Second)
				_, err := archive.Save(ctx, conv)
				Expect(err).NotTo(HaveOccurred())
			}
		})

		It("orders by most recent update", func() {
			metas, err := archive.List(ctx, 0)
			Expect(err).NotTo(HaveOccurred())
			Expect(metas).To(HaveLen(3))
			Expect(metas[0].ID).To(Equal("new"))
			Expect(metas[2].ID).To(Equal("old"))
		})

		It("honours the limit", func() {
			metas, err := archive.List(ctx, 2)
			Expect(err).NotTo(HaveOccurred())
			Expect(metas).To(HaveLen(2))
		})
	})

	Describe("Get", func() {
		BeforeEach(func() {
			for _, id := range []string{"abc-123", "abd-456"} {
				_, err := archive.Save(ctx, storage.FromTranscript(id, exchange("q", "a"), ""))
				Expect(err).NotTo(HaveOccurred())
			}
		})

		It("resolves a unique prefix", func() {
			conv, err := archive.Get(ctx, "abc")
			Expect(err).NotTo(HaveOccurred())
			Expect(conv.ID).To(Equal("abc-123"))
		})

		It("rejects an ambiguous prefix", func() {
			_, err := archive.Get(ctx, "ab")
			Expect(err).To(MatchError(ContainSubstring("ambiguous")))
		})

		It("prefers an exact id over longer ids sharing it", func() {
			_, err := archive.Save(ctx, storage.FromTranscript("ab", exchange("q", "a"), ""))
			Expect(err).NotTo(HaveOccurred())

			conv, err := archive.Get(ctx, "ab")
			Expect(err).NotTo(HaveOccurred())
			Expect(conv.ID).To(Equal("ab"))
		})

		It("reports unknown conversations", func() {
			_, err := archive.Get(ctx, "zzz")
			Expect(err).To(MatchError(storage.ErrNotFound))
		})

		It("treats LIKE wildcards literally", func() {
			_, err := archive.Get(ctx, "a%")
			Expect(err).To(MatchError(storage.ErrNotFound))
		})
	})

	Describe("Delete", func() {
		It("removes the conversation and its turns", func() {
			_, err := archive.Save(ctx, storage.FromTranscript("gone", exchange("q", "a"), ""))
			Expect(err).NotTo(HaveOccurred())

			Expect(archive.Delete(ctx, "gone")).To(Succeed())
			_, err = archive.Get(ctx, "gone")
			Expect(err).To(MatchError(storage.ErrNotFound))
			Expect(archive.Delete(ctx, "gone")).To(MatchError(storage.ErrNotFound))
		})
	})

	Describe("Open", func() {
		It("creates the database file and its directory", func() {
			path := filepath.Join(GinkgoT().TempDir(), "nested", "talks.db")
			a, err := storage.Open(path)
			Expect(err).NotTo(HaveOccurred())
			_, err = a.Save(ctx, storage.FromTranscript("x", exchange("q", "a"), ""))
			Expect(err).NotTo(HaveOccurred())
			Expect(a.Close()).To(Succeed())

			reopened, err := storage.Open(path)
			Expect(err).NotTo(HaveOccurred())
			defer reopened.Close()
			metas, err := reopened.List(ctx, 0)
			Expect(err).NotTo(HaveOccurred())
			Expect(metas).To(HaveLen(1))
		})
	})
})
